package ffmpeg

import "strings"

// ParseLogLevel extracts the log level from a line of ffmpeg output.
// With -loglevel level ffmpeg prefixes lines with "[info] message", or
// "[component @ 0x...] [level] message" for component logs. Returns the
// level and the message with the level marker stripped; the component
// prefix is kept. Lines without a recognizable level default to info.
func ParseLogLevel(line string) (level, msg string) {
	if lvl, rest, ok := splitLevel(line); ok {
		return lvl, rest
	}

	// Component-prefixed form: keep the component, strip the level.
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "] "); end != -1 {
			if lvl, rest, ok := splitLevel(line[end+2:]); ok {
				return lvl, line[:end+2] + rest
			}
		}
	}

	return "info", line
}

// splitLevel splits a "[level] message" prefix off s.
func splitLevel(s string) (level, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return "", "", false
	}
	end := strings.Index(s, "] ")
	if end == -1 {
		return "", "", false
	}
	if lvl := s[1:end]; isLogLevel(lvl) {
		return lvl, s[end+2:], true
	}
	return "", "", false
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}
