// Package app 定义应用启动所需的选项接口.
package app

import "github.com/BluePanda-io/ai-agent-apis/pkg/app/cliflag"

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() (fss cliflag.NamedFlagSets)
	// Complete fills derived and defaulted values.
	Complete() error
	// Validate aggregates every option error.
	Validate() error
}

// PrintableOptions is an optional interface for options that can print themselves.
type PrintableOptions interface {
	String() string
}
