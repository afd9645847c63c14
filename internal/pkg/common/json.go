package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	for {
		t, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if t != nil {
			return fmt.Errorf("unexpected extra JSON data")
		}
	}
}

// RepairJSONArray 修補被切割過的 JSON 陣列：補上開頭的 [，結尾逗號換成 ]
func RepairJSONArray(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "[]"
	}
	if s[0] != '[' {
		s = "[" + s
	}
	switch s[len(s)-1] {
	case ']':
	case ',':
		s = s[:len(s)-1] + "]"
	default:
		s += "]"
	}
	return s
}

// Latin1ToUTF8 將 ISO-8859-1 位元組轉為 UTF-8；已是合法 UTF-8 時原樣返回
func Latin1ToUTF8(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
