// pkg/ledger/eth/artifact.go
package eth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact 是 solc/hardhat 编译产物 (RepositoryContract.json) 里
// 我们关心的两块: ABI 和部署字节码。
// 原则上合约是外部协作方，这里只消费它的构建产物，不自带绑定代码。
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

// LoadArtifact 从 hardhat 构建产物读取 ABI 与字节码
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read contract artifact %s: %w", path, err)
	}
	return ParseArtifact(data)
}

// ParseArtifact 解析产物 JSON。拆出来是为了让测试不依赖文件系统。
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode string          `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid contract artifact: %w", err)
	}
	if len(raw.ABI) == 0 {
		return nil, fmt.Errorf("invalid contract artifact: missing abi")
	}

	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("invalid contract abi: %w", err)
	}

	// 字节码只有部署时才需要；Attach 已有地址时允许产物不带 bytecode
	var code []byte
	if raw.Bytecode != "" && raw.Bytecode != "0x" {
		code = common.FromHex(raw.Bytecode)
		if len(code) == 0 {
			return nil, fmt.Errorf("invalid contract bytecode: %q", raw.Bytecode)
		}
	}

	return &Artifact{ABI: parsed, Bytecode: code}, nil
}
