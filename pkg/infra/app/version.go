package app

import "github.com/kart-io/version"

// VersionFields returns build information as logger key/value pairs.
func VersionFields() []any {
	info := version.Get()
	return []any{
		"version", info.GitVersion,
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
	}
}
