// Package options 定义各组件配置的公共接口.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join builds a flag prefix such as "prefix.": empty input yields "".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions 组件配置需要实现的接口.
type IOptions interface {
	// Validate 校验配置, 返回所有错误.
	Validate() []error

	// AddFlags 将配置项注册到 flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
