package main

import (
	"log"

	"chaingit/cmd/cg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
