package server

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"chaingit/pkg/types"
)

// pkt-line: 4 位十六进制长度前缀 (含前缀本身)，"0000" 是 flush 标记。
// smart HTTP 的广告响应要求服务端自己拼第一段:
//
//	001e# service=git-upload-pack\n0000<git 的原始 stdout>
const flushPkt = "0000"

// encodePktLine 给一行数据加上长度前缀
func encodePktLine(payload string) string {
	return fmt.Sprintf("%04x%s", len(payload)+4, payload)
}

// ServiceAnnouncement 构造 info/refs 响应的头部:
// pkt-line 编码的 "# service=<S>\n" 加 flush
func ServiceAnnouncement(service string) []byte {
	var buf bytes.Buffer
	buf.WriteString(encodePktLine("# service=" + service + "\n"))
	buf.WriteString(flushPkt)
	return buf.Bytes()
}

// ParseWants 从 upload-pack 协商请求体里解出所有 want 的对象哈希。
// 请求体是 pkt-line 帧序列，want 行形如:
//
//	0032want 2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c\n
//
// 必须按帧解码而不是按行扫描 —— 长度前缀紧贴着 "want"，
// 裸的 strings.HasPrefix 一条都匹配不到。
// 帧里 want 后面可能跟能力列表 (第一条 want 行)，哈希取第一个字段。
func ParseWants(body []byte) ([]types.Hash, error) {
	var wants []types.Hash
	rest := body
	for len(rest) > 0 {
		if len(rest) < 4 {
			return nil, fmt.Errorf("truncated pkt-line: %q", rest)
		}
		size, err := strconv.ParseUint(string(rest[:4]), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("bad pkt-line length %q: %w", rest[:4], err)
		}
		if size == 0 {
			// flush: want 段结束，后面是 have/done，不关心
			break
		}
		if size < 4 || int(size) > len(rest) {
			return nil, fmt.Errorf("pkt-line length %d out of range", size)
		}
		line := strings.TrimSuffix(string(rest[4:size]), "\n")
		rest = rest[size:]

		if !strings.HasPrefix(line, "want ") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "want "))
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty want line")
		}
		wants = append(wants, types.Hash(fields[0]))
	}
	return wants, nil
}
