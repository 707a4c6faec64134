package textutil

import (
	"bufio"
	"strings"
)

// Lines splits command output into lines, dropping blank ones. Leading
// whitespace is preserved because some grammars use indentation.
func Lines(output string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// KeyValue splits "key: value" at the first colon. ok is false when the line
// has no colon or the key is empty.
func KeyValue(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}

// Indented reports whether line starts with whitespace.
func Indented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}
