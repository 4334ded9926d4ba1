// Package json 在 amd64/arm64 上使用 sonic, 其他平台回退到 encoding/json.
package json

import (
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

type (
	RawMessage = stdjson.RawMessage
	Number     = stdjson.Number
)

var (
	Marshal   func(v any) ([]byte, error)
	Unmarshal func(data []byte, v any) error

	// MarshalSorted 输出按 key 排序的 JSON, 用于构造稳定的 LLM 提示词.
	MarshalSorted func(v any) ([]byte, error)

	NewEncoder func(w io.Writer) Encoder
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool
)

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

func init() {
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		Marshal = sonic.Marshal
		Unmarshal = sonic.Unmarshal
		MarshalSorted = sonic.ConfigStd.Marshal
		NewEncoder = func(w io.Writer) Encoder { return sonic.ConfigDefault.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return sonic.ConfigDefault.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	MarshalSorted = stdjson.Marshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// IsUsingSonic reports which backend is active.
func IsUsingSonic() bool {
	return usingSonic
}
