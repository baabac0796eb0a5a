package nfa

import (
	"errors"
	"testing"
)

func TestPatternError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PatternError
		wantFull string
	}{
		{
			name:     "with pattern",
			err:      &PatternError{Pattern: `[a-z]+`, Err: ErrTooComplex},
			wantFull: `cannot compile pattern "[a-z]+": pattern too complex`,
		},
		{
			name:     "empty pattern",
			err:      &PatternError{Pattern: "", Err: ErrInvalidPattern},
			wantFull: "cannot compile pattern: invalid regex pattern",
		},
		{
			name:     "nil inner error",
			err:      &PatternError{Pattern: "x", Err: nil},
			wantFull: `cannot compile pattern "x": <nil>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.wantFull {
				t.Errorf("Error() = %q, want %q", got, tt.wantFull)
			}
		})
	}
}

func TestPatternError_ErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "Is ErrTooComplex via PatternError",
			err:    &PatternError{Pattern: "a{999}", Err: ErrTooComplex},
			target: ErrTooComplex,
			want:   true,
		},
		{
			name:   "Is ErrInvalidPattern via PatternError",
			err:    &PatternError{Pattern: "[", Err: ErrInvalidPattern},
			target: ErrInvalidPattern,
			want:   true,
		},
		{
			name:   "Is ErrInvalidConfig - not matching",
			err:    &PatternError{Pattern: "a", Err: ErrInvalidPattern},
			target: ErrInvalidConfig,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPatternError_ErrorsAs(t *testing.T) {
	_, err := Compile([]rune("(a"))

	var pe *PatternError
	if !errors.As(err, &pe) {
		t.Fatalf("errors.As failed to extract PatternError from %v", err)
	}
	if pe.Pattern != "(a" {
		t.Errorf("Pattern = %q, want %q", pe.Pattern, "(a")
	}
	if !errors.Is(pe, ErrInvalidPattern) {
		t.Errorf("Err = %v, want %v", pe.Err, ErrInvalidPattern)
	}
}

func TestBuildError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BuildError
		wantFull string
	}{
		{
			name:     "with valid state ID",
			err:      &BuildError{Message: "invalid next state 99", StateID: StateID(5)},
			wantFull: "NFA build error at state 5: invalid next state 99",
		},
		{
			name:     "with InvalidState",
			err:      &BuildError{Message: "start state not set", StateID: InvalidState},
			wantFull: "NFA build error: start state not set",
		},
		{
			name:     "with state ID 0",
			err:      &BuildError{Message: "some issue", StateID: StateID(0)},
			wantFull: "NFA build error at state 0: some issue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.wantFull {
				t.Errorf("Error() = %q, want %q", got, tt.wantFull)
			}
		})
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrInvalidPattern,
		ErrTooComplex,
		ErrInvalidConfig,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Errorf("sentinel errors %q and %q should be distinct but errors.Is returned true", a, b)
			}
		}
	}
}
