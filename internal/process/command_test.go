package process

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"python agents/trading/orchestrator.py", []string{"python", "agents/trading/orchestrator.py"}},
		{`sh -c "trap 'exit 0' TERM; sleep 1"`, []string{"sh", "-c", "trap 'exit 0' TERM; sleep 1"}},
		{`echo hello\ world`, []string{"echo", "hello world"}},
		{`echo ""`, []string{"echo", ""}},
		{"  spaced   out\targs ", []string{"spaced", "out", "args"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommand(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	if _, err := ParseCommand(`echo "unclosed`); !errors.Is(err, ErrUnclosedQuote) {
		t.Errorf("expected ErrUnclosedQuote, got %v", err)
	}
	if _, err := ParseCommand(""); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestParseLevelPrefix(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"12:00:01 | WARNING  | trading - market closed", "warning", "trading - market closed"},
		{"12:00:01 | ERROR | boom", "error", "boom"},
		{"[debug] polling feed", "debug", "polling feed"},
		{"CRITICAL: disk full", "critical", "disk full"},
		{"plain message", "info", "plain message"},
		{"a | b | c", "info", "a | b | c"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			level, msg := ParseLevelPrefix(tt.line)
			if level != tt.wantLevel || msg != tt.wantMsg {
				t.Errorf("ParseLevelPrefix(%q) = (%q, %q), want (%q, %q)", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
			}
		})
	}
}

func TestJoinCommandRoundTrip(t *testing.T) {
	tests := [][]string{
		{"python", "agents/trading/orchestrator.py"},
		{"sh", "-c", "echo 'hello world'; exit 3"},
		{"printf", `a"b\c`, ""},
		{"tab\there", "trailing "},
	}

	for _, args := range tests {
		got, err := ParseCommand(JoinCommand(args))
		if err != nil {
			t.Fatalf("ParseCommand(JoinCommand(%q)) error: %v", args, err)
		}
		if !reflect.DeepEqual(got, args) {
			t.Errorf("round trip of %q = %q", args, got)
		}
	}
}
