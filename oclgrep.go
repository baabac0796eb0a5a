// Package oclgrep searches text for a regular expression on a data-parallel
// compute device.
//
// A pattern is compiled into a flat nondeterministic automaton, uploaded once
// to the device, and evaluated from every code point offset of the text in
// parallel. The result is the set of offsets at which a match begins.
//
// Basic usage:
//
//	eng, err := engine.Initialize(engine.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	re, err := oclgrep.Compile(`b+`, oclgrep.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	s, err := oclgrep.NewSearcher(eng, re, oclgrep.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	err = s.FindAll([]rune("abba"), func(offset int) error {
//	    fmt.Println(offset) // 1, 2
//	    return nil
//	})
//
// Text is processed in non-overlapping windows of MaxWindowSize code points.
// Matches are only found inside a window: a match that would span two
// windows is not reported.
//
// Anchors (^, $, \b) are evaluated relative to the window, and \b uses ASCII
// word characters. Empty matches are reported at every offset of the text.
package oclgrep

import (
	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/engine"
	"github.com/coregx/oclgrep/nfa"
	"github.com/coregx/oclgrep/runner"
)

// Config controls pattern compilation and searching.
type Config struct {
	// CaseInsensitive folds case for the whole pattern, as (?i) does.
	CaseInsensitive bool

	// DotNewline makes '.' match '\n', as (?s) does.
	DotNewline bool

	// MultiLine makes ^ and $ match at line boundaries, as (?m) does.
	MultiLine bool

	// MaxStates limits the size of the automaton. Zero uses the compiler
	// default.
	MaxStates int

	// MaxClassSize limits the code points a single class may expand to.
	// Zero uses the compiler default.
	MaxClassSize int

	// MaxWindowSize is the number of code points evaluated per device
	// dispatch.
	MaxWindowSize int

	// Prefilter enables the host-side candidate prefilter.
	Prefilter bool

	// Profiling records per-window timings, see Searcher.Profiles.
	Profiling bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	rc := runner.DefaultConfig()
	return Config{
		MaxWindowSize: rc.MaxWindowSize,
		Prefilter:     rc.Prefilter,
	}
}

func (c Config) compilerConfig() nfa.CompilerConfig {
	cc := nfa.DefaultCompilerConfig()
	cc.CaseInsensitive = c.CaseInsensitive
	cc.DotNewline = c.DotNewline
	cc.MultiLine = c.MultiLine
	if c.MaxStates != 0 {
		cc.MaxStates = c.MaxStates
	}
	if c.MaxClassSize != 0 {
		cc.MaxClassSize = c.MaxClassSize
	}
	return cc
}

func (c Config) runnerConfig() runner.Config {
	return runner.Config{
		MaxWindowSize: c.MaxWindowSize,
		Prefilter:     c.Prefilter,
		Profiling:     c.Profiling,
	}
}

// Regex is a compiled pattern. It holds no device resources and is safe
// for concurrent use.
type Regex struct {
	pattern string
	a       *automaton.Automaton
}

// Compile compiles pattern. Errors are *nfa.PatternError values.
func Compile(pattern string, cfg Config) (*Regex, error) {
	a, err := nfa.NewCompiler(cfg.compilerConfig()).Compile([]rune(pattern))
	if err != nil {
		return nil, err
	}
	return &Regex{pattern: pattern, a: a}, nil
}

// MustCompile is like Compile with the default configuration but panics if
// the pattern cannot be compiled.
func MustCompile(pattern string) *Regex {
	re, err := Compile(pattern, DefaultConfig())
	if err != nil {
		panic("oclgrep: Compile(`" + pattern + "`): " + err.Error())
	}
	return re
}

// String returns the source text of the pattern.
func (r *Regex) String() string {
	return r.pattern
}

// Automaton returns the compiled automaton.
func (r *Regex) Automaton() *automaton.Automaton {
	return r.a
}

// Searcher runs a Regex over text on an engine. A Searcher is not safe for
// concurrent use.
type Searcher struct {
	re     *Regex
	runner *runner.Runner
	window int
}

// NewSearcher uploads re to the device of eng. Invalid configuration is a
// *runner.ConfigError; device failures are *device.Error values.
func NewSearcher(eng *engine.Engine, re *Regex, cfg Config) (*Searcher, error) {
	r, err := runner.New(eng, re.a, cfg.runnerConfig())
	if err != nil {
		return nil, err
	}
	return &Searcher{re: re, runner: r, window: cfg.MaxWindowSize}, nil
}

// FindAll calls fn with the offset, in code points, of every match start in
// text, in ascending order. Text is split into consecutive windows of at
// most MaxWindowSize code points. FindAll stops at the first error returned
// by the device or by fn.
func (s *Searcher) FindAll(text []rune, fn func(offset int) error) error {
	for base := 0; base < len(text); base += s.window {
		end := min(base+s.window, len(text))
		offsets, err := s.runner.Run(text[base:end])
		if err != nil {
			return err
		}
		for _, off := range offsets {
			if err := fn(base + off); err != nil {
				return err
			}
		}
	}
	return nil
}

// FindAllIndex returns the offsets of every match start in text.
func (s *Searcher) FindAllIndex(text []rune) ([]int, error) {
	var out []int
	err := s.FindAll(text, func(offset int) error {
		out = append(out, offset)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Regex returns the pattern of the searcher.
func (s *Searcher) Regex() *Regex {
	return s.re
}

// Profiles returns the per-window profiles recorded so far, or nil when
// profiling is disabled.
func (s *Searcher) Profiles() []runner.Profile {
	return s.runner.Profiles()
}

// TakeProfiles returns the profiles recorded so far and forgets them, so a
// long search can report them without retaining one per window.
func (s *Searcher) TakeProfiles() []runner.Profile {
	return s.runner.TakeProfiles()
}

// Close releases the device buffers of the searcher.
func (s *Searcher) Close() {
	s.runner.Close()
}
