package nfa

import (
	"errors"
	"testing"
	"unicode"

	"github.com/coregx/oclgrep/automaton"
)

func mustCompile(t *testing.T, pattern string) *automaton.Automaton {
	t.Helper()
	a, err := Compile([]rune(pattern))
	if err != nil {
		t.Fatalf("Compile(%q) error = %v", pattern, err)
	}
	return a
}

// slotTargets returns the real targets of the slot of state for sym.
func slotTargets(t *testing.T, a *automaton.Automaton, state uint32, sym automaton.Word) []uint32 {
	t.Helper()
	k, ok := a.Find(state, sym)
	if !ok {
		t.Fatalf("state %d has no slot for %s", state, automaton.SymbolString(sym))
	}
	var out []uint32
	for j := uint32(0); j < a.FanOut(); j++ {
		if tgt := a.Target(state, k, j); tgt != automaton.Reject {
			out = append(out, tgt)
		}
	}
	return out
}

func equalTargets(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompile_Shapes(t *testing.T) {
	tests := []struct {
		pattern string
		n, o    uint32
		startM  uint32
	}{
		{"a", 3, 1, 1},
		{"ab", 4, 1, 1},
		{"a|b", 3, 1, 2},
		{"a|ab", 4, 2, 1},
		{"a*", 4, 2, 2},
		{"a+", 4, 2, 1},
		{"a?b", 4, 1, 2},
		{"^a", 4, 1, 1},
		{"", 3, 1, 1},
		{"[a-c]", 3, 1, 3},
		{"(?i)k", 3, 1, 3},
		{"a{2,3}", 5, 2, 1},
		{"a{0}", 3, 1, 1},
		{`[^\x00-\x{10FFFF}]`, 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			a := mustCompile(t, tt.pattern)
			if a.N() != tt.n {
				t.Errorf("N() = %d, want %d", a.N(), tt.n)
			}
			if a.FanOut() != tt.o {
				t.Errorf("FanOut() = %d, want %d", a.FanOut(), tt.o)
			}
			if m := a.SlotCount(automaton.Start); m != tt.startM {
				t.Errorf("SlotCount(Start) = %d, want %d", m, tt.startM)
			}
			if err := a.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestCompile_Transitions(t *testing.T) {
	t.Run("literal", func(t *testing.T) {
		a := mustCompile(t, "ab")
		if got := slotTargets(t, a, automaton.Start, 'a'); !equalTargets(got, []uint32{3}) {
			t.Errorf("Start -a-> %v, want [3]", got)
		}
		if got := slotTargets(t, a, 3, 'b'); !equalTargets(got, []uint32{automaton.Accept}) {
			t.Errorf("3 -b-> %v, want [Accept]", got)
		}
	})

	t.Run("nondeterministic alternation", func(t *testing.T) {
		a := mustCompile(t, "a|ab")
		if got := slotTargets(t, a, automaton.Start, 'a'); !equalTargets(got, []uint32{automaton.Accept, 3}) {
			t.Errorf("Start -a-> %v, want [Accept 3]", got)
		}
		k, _ := a.Find(3, 'b')
		if pad := a.Target(3, k, 1); pad != automaton.Reject {
			t.Errorf("padding target = %d, want Reject", pad)
		}
	})

	t.Run("star back-edge and empty match", func(t *testing.T) {
		a := mustCompile(t, "a*")
		if got := slotTargets(t, a, automaton.Start, automaton.GuardAlways); !equalTargets(got, []uint32{automaton.Accept}) {
			t.Errorf("Start -always-> %v, want [Accept]", got)
		}
		if got := slotTargets(t, a, 3, 'a'); !equalTargets(got, []uint32{automaton.Accept, 3}) {
			t.Errorf("3 -a-> %v, want [Accept 3] (self loop)", got)
		}
	})

	t.Run("anchor as guard", func(t *testing.T) {
		a := mustCompile(t, "^a$")
		if got := slotTargets(t, a, automaton.Start, automaton.GuardBeginText); !equalTargets(got, []uint32{3}) {
			t.Errorf("Start -begin-text-> %v, want [3]", got)
		}
		if got := slotTargets(t, a, 3, 'a'); !equalTargets(got, []uint32{4}) {
			t.Errorf("3 -a-> %v, want [4]", got)
		}
		if got := slotTargets(t, a, 4, automaton.GuardEndText); !equalTargets(got, []uint32{automaton.Accept}) {
			t.Errorf("4 -end-text-> %v, want [Accept]", got)
		}
	})

	t.Run("multiline anchors", func(t *testing.T) {
		a := mustCompile(t, "(?m)^a$")
		if _, ok := a.Find(automaton.Start, automaton.GuardBeginLine); !ok {
			t.Error("(?m)^ should compile to a begin-line guard")
		}
	})

	t.Run("word boundary", func(t *testing.T) {
		a := mustCompile(t, `\bx\B`)
		if _, ok := a.Find(automaton.Start, automaton.GuardWordBoundary); !ok {
			t.Error(`\b should compile to a word-boundary guard`)
		}
	})

	t.Run("case folding", func(t *testing.T) {
		a := mustCompile(t, "(?i)k")
		for _, r := range []rune{'k', 'K', '\u212A'} {
			if _, ok := a.Find(automaton.Start, automaton.Word(r)); !ok {
				t.Errorf("(?i)k has no slot for %q", r)
			}
		}
	})

	t.Run("astral code points", func(t *testing.T) {
		a := mustCompile(t, "\U0001F600+")
		if _, ok := a.Find(automaton.Start, 0x1F600); !ok {
			t.Error("missing slot for U+1F600")
		}
	})
}

func TestCompile_WildcardExpansion(t *testing.T) {
	a := mustCompile(t, ".")

	if m := a.SlotCount(automaton.Start); m != unicode.MaxRune {
		t.Errorf("SlotCount(Start) = %d, want %d", m, unicode.MaxRune)
	}
	if _, ok := a.Find(automaton.Start, '\n'); ok {
		t.Error(". should not match newline by default")
	}
	for _, r := range []rune{0, 'x', unicode.MaxRune} {
		if _, ok := a.Find(automaton.Start, automaton.Word(r)); !ok {
			t.Errorf(". has no slot for %#x", r)
		}
	}

	c := NewCompiler(CompilerConfig{DotNewline: true})
	a, err := c.Compile([]rune("."))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if _, ok := a.Find(automaton.Start, '\n'); !ok {
		t.Error("DotNewline: . should match newline")
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern []rune
		config  CompilerConfig
		target  error
	}{
		{"unbalanced open group", []rune("(a"), DefaultCompilerConfig(), ErrInvalidPattern},
		{"unbalanced close group", []rune("a)"), DefaultCompilerConfig(), ErrInvalidPattern},
		{"reversed class range", []rune("[z-a]"), DefaultCompilerConfig(), ErrInvalidPattern},
		{"invalid escape", []rune(`\q`), DefaultCompilerConfig(), ErrInvalidPattern},
		{"missing repeat operand", []rune("*a"), DefaultCompilerConfig(), ErrInvalidPattern},
		{"unclosed class", []rune("[abc"), DefaultCompilerConfig(), ErrInvalidPattern},
		{"surrogate code point", []rune{'a', 0xD800}, DefaultCompilerConfig(), ErrInvalidPattern},
		{"code point out of range", []rune{unicode.MaxRune + 1}, DefaultCompilerConfig(), ErrInvalidPattern},
		{"class too large", []rune("[a-z]"), CompilerConfig{MaxClassSize: 10}, ErrTooComplex},
		{"too many states", []rune("abcdefgh"), CompilerConfig{MaxStates: 5}, ErrTooComplex},
		{"too deep", []rune("((a))"), CompilerConfig{MaxRecursionDepth: 2}, ErrTooComplex},
		{"invalid config", []rune("a"), CompilerConfig{MaxStates: 2}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewCompiler(tt.config).Compile(tt.pattern)
			if err == nil {
				t.Fatalf("Compile(%q) succeeded, want error", string(tt.pattern))
			}
			if a != nil {
				t.Error("a failed compilation must not return an automaton")
			}
			var pe *PatternError
			if !errors.As(err, &pe) {
				t.Fatalf("error %v is not a *PatternError", err)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.target)
			}
		})
	}
}

func TestCompile_AllValidate(t *testing.T) {
	patterns := []string{
		"a", "abc", "a|b|c", "(a|b)*c", "a+b+", "x?y?z?", "a{3}", "a{2,}", "a{1,4}b",
		"[0-9]+", `\d\s\w`, "(?i)hello", "^$", "(?m)^foo$", `\bword\b`, "(a*)*", "(a|)+",
		"日本語", "[α-ω]+", "a.c",
	}
	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			a, err := Compile([]rune(p))
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", p, err)
			}
			if err := a.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if a.SlotCount(automaton.Accept) != 0 || a.SlotCount(automaton.Reject) != 0 {
				t.Error("Accept and Reject must be terminal")
			}
		})
	}
}

func TestCompilerConfig_Defaults(t *testing.T) {
	c := NewCompiler(CompilerConfig{})
	def := DefaultCompilerConfig()
	if c.config.MaxRecursionDepth != def.MaxRecursionDepth ||
		c.config.MaxClassSize != def.MaxClassSize ||
		c.config.MaxStates != def.MaxStates {
		t.Errorf("zero config not filled with defaults: %+v", c.config)
	}
	if err := def.Validate(); err != nil {
		t.Errorf("DefaultCompilerConfig().Validate() = %v", err)
	}
}
