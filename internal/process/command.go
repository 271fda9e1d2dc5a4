package process

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyCommand is returned when a command string has no arguments.
	ErrEmptyCommand = errors.New("empty command")
	// ErrUnclosedQuote is returned when a command string ends inside a quote.
	ErrUnclosedQuote = errors.New("unclosed quote in command")
)

// ParseCommand splits a command string into arguments.
// Handles single and double quotes and backslash escapes; no shell expansion.
func ParseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	hasToken := false
	quoteChar := rune(0)

	runes := []rune(strings.TrimSpace(command))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				hasToken = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case (r == ' ' || r == '\t') && !inQuote:
			if hasToken {
				args = append(args, current.String())
				current.Reset()
				hasToken = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			hasToken = true
		default:
			current.WriteRune(r)
			hasToken = true
		}
	}

	if inQuote {
		return nil, ErrUnclosedQuote
	}
	if hasToken {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, ErrEmptyCommand
	}
	return args, nil
}

// JoinCommand is the inverse of ParseCommand: it quotes each argument so
// that ParseCommand(JoinCommand(args)) returns args.
func JoinCommand(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		var b strings.Builder
		quote := arg == "" || strings.ContainsAny(arg, " \t")
		if quote {
			b.WriteByte('\'')
		}
		for _, r := range arg {
			if r == '"' || r == '\'' || r == '\\' {
				b.WriteRune('\\')
			}
			b.WriteRune(r)
		}
		if quote {
			b.WriteByte('\'')
		}
		parts[i] = b.String()
	}
	return strings.Join(parts, " ")
}
