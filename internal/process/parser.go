package process

import "strings"

var levelNames = []string{"critical", "fatal", "error", "warning", "warn", "info", "debug", "trace"}

// ParseLevelPrefix recognizes the level markers common to worker log formats:
// "12:00:01 | WARNING | agent - message", "[error] message" and
// "ERROR: message". Lines without a recognizable marker are reported at info
// and returned unchanged.
func ParseLevelPrefix(line string) (level, msg string) {
	trimmed := strings.TrimSpace(line)

	// pipe-separated: "<time> | <LEVEL> | <rest>"
	if parts := strings.SplitN(trimmed, "|", 3); len(parts) == 3 {
		if lvl, ok := matchLevel(parts[1]); ok {
			return lvl, strings.TrimSpace(parts[2])
		}
	}

	if strings.HasPrefix(trimmed, "[") {
		if end := strings.IndexByte(trimmed, ']'); end > 0 {
			if lvl, ok := matchLevel(trimmed[1:end]); ok {
				return lvl, strings.TrimSpace(trimmed[end+1:])
			}
		}
	}

	if idx := strings.IndexByte(trimmed, ':'); idx > 0 {
		if lvl, ok := matchLevel(trimmed[:idx]); ok {
			return lvl, strings.TrimSpace(trimmed[idx+1:])
		}
	}

	return "info", line
}

func matchLevel(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, name := range levelNames {
		if s == name {
			return name, true
		}
	}
	return "", false
}
