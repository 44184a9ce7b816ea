package common

import (
	"os"
	"strings"
)

const bytesInMB = 1024 * 1024

func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ExpandEnv replaces ${VAR} and $VAR references with values from the environment.
// Unset variables expand to an empty string.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
