package kgs

import (
	"runtime/debug"
)

const root = "github.com/infodyn/kgs"

// Version returns the module version and checksum of the running binary.
// The returned values are only valid in binaries built with module
// support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path == root {
			if m.Replace != nil {
				return m.Replace.Version, m.Replace.Sum
			}
			return m.Version, m.Sum
		}
	}
	return "", ""
}
