package metadata

import (
	"strings"
)

// MaxBlockSize is the largest ICY metadata block: 255 units of 16 bytes.
const MaxBlockSize = 255 * 16

// ParseICYBlock extracts Key='value'; pairs from a raw ICY metadata block.
// Values may contain quotes and semicolons; a field ends at the next "';".
func ParseICYBlock(block []byte) map[string]string {
	s := strings.TrimRight(string(block), "\x00")
	fields := make(map[string]string)

	for len(s) > 0 {
		eq := strings.Index(s, "='")
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(s[:eq])
		rest := s[eq+2:]

		end := strings.Index(rest, "';")
		var value string
		if end < 0 {
			value = strings.TrimSuffix(rest, "'")
			s = ""
		} else {
			value = rest[:end]
			s = rest[end+2:]
		}
		if key != "" {
			fields[key] = value
		}
	}
	return fields
}

// StreamTitle returns the StreamTitle field of an ICY block.
func StreamTitle(block []byte) (string, bool) {
	title, ok := ParseICYBlock(block)["StreamTitle"]
	return title, ok
}
