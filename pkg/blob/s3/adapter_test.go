package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentID(t *testing.T) {
	// sha256("hello world")
	assert.Equal(t,
		"b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		ContentID([]byte("hello world")))

	// 空内容也有稳定摘要
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentID(nil))
}

func TestTransformKey(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "aa/bbcc", a.transformKey("aabbcc"))
	assert.Equal(t, "x", a.transformKey("x"))
}
