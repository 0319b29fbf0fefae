// Package util holds small helpers about the runtime environment
package util

import (
	"os"
	"strings"
)

// IsRunningInDocker reports whether the process runs inside a docker container
func IsRunningInDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}

// IsMemoryDSN reports whether a sqlite DSN points at an in-memory database
func IsMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// SplitList splits a comma separated setting and drops empty items
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
