package fileutil

import (
	"os"
	"strings"
)

// SplitLines splits content into lines without their terminators. A trailing
// newline does not produce an extra empty line.
func SplitLines(content []byte) []string {
	if len(content) == 0 {
		return []string{}
	}
	text := strings.TrimSuffix(string(content), "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// ReadLines reads path and splits it with SplitLines.
func ReadLines(path string) ([]byte, []string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return content, SplitLines(content), nil
}
