package nfa

import (
	"fmt"
	"regexp/syntax"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/coregx/oclgrep/automaton"
)

// CompilerConfig configures NFA compilation behavior
type CompilerConfig struct {
	// DotNewline determines whether '.' matches '\n'
	DotNewline bool

	// CaseInsensitive folds case for the whole pattern, as (?i) does
	CaseInsensitive bool

	// MultiLine makes ^ and $ match at line boundaries, as (?m) does
	MultiLine bool

	// MaxRecursionDepth limits recursion during compilation to prevent stack overflow
	// Default: 100
	MaxRecursionDepth int

	// MaxClassSize limits the number of code points a single class or
	// wildcard may expand to. Every code point becomes one transition entry.
	// Default: 0x110000 (the whole code space)
	MaxClassSize int

	// MaxStates limits the number of states of the Thompson NFA and of the
	// flattened automaton.
	// Default: 1 << 20
	MaxStates int
}

// DefaultCompilerConfig returns a compiler configuration with sensible defaults
func DefaultCompilerConfig() CompilerConfig {
	return CompilerConfig{
		DotNewline:        false,
		CaseInsensitive:   false,
		MultiLine:         false,
		MaxRecursionDepth: 100,
		MaxClassSize:      unicode.MaxRune + 1,
		MaxStates:         1 << 20,
	}
}

// Validate checks the configuration limits.
func (c CompilerConfig) Validate() error {
	switch {
	case c.MaxRecursionDepth < 1:
		return fmt.Errorf("%w: MaxRecursionDepth must be positive", ErrInvalidConfig)
	case c.MaxClassSize < 1:
		return fmt.Errorf("%w: MaxClassSize must be positive", ErrInvalidConfig)
	case c.MaxStates < automaton.NumReserved:
		return fmt.Errorf("%w: MaxStates must be at least %d", ErrInvalidConfig, automaton.NumReserved)
	}
	return nil
}

func (c CompilerConfig) parseFlags() syntax.Flags {
	flags := syntax.Perl
	if c.DotNewline {
		flags |= syntax.DotNL
	}
	if c.CaseInsensitive {
		flags |= syntax.FoldCase
	}
	if c.MultiLine {
		flags &^= syntax.OneLine
	}
	return flags
}

// Compiler compiles regexp/syntax.Regexp patterns into Thompson NFAs and
// flattens them into automata.
type Compiler struct {
	config  CompilerConfig
	builder *Builder
	depth   int // current recursion depth
}

// NewCompiler creates a new NFA compiler with the given configuration
func NewCompiler(config CompilerConfig) *Compiler {
	def := DefaultCompilerConfig()
	if config.MaxRecursionDepth == 0 {
		config.MaxRecursionDepth = def.MaxRecursionDepth
	}
	if config.MaxClassSize == 0 {
		config.MaxClassSize = def.MaxClassSize
	}
	if config.MaxStates == 0 {
		config.MaxStates = def.MaxStates
	}
	return &Compiler{
		config:  config,
		builder: NewBuilder(),
	}
}

// NewDefaultCompiler creates a new NFA compiler with default configuration
func NewDefaultCompiler() *Compiler {
	return NewCompiler(DefaultCompilerConfig())
}

// Compile compiles a pattern given as a sequence of code points using the
// default configuration.
func Compile(pattern []rune) (*automaton.Automaton, error) {
	return NewDefaultCompiler().Compile(pattern)
}

// Compile compiles a pattern given as a sequence of code points into a flat
// automaton. On failure it returns a *PatternError and no automaton.
func (c *Compiler) Compile(pattern []rune) (*automaton.Automaton, error) {
	for i, r := range pattern {
		if !utf8.ValidRune(r) {
			return nil, &PatternError{
				Pattern: string(pattern),
				Err:     fmt.Errorf("%w: invalid code point %#x at position %d", ErrInvalidPattern, r, i),
			}
		}
	}
	return c.CompileString(string(pattern))
}

// CompileString compiles a UTF-8 pattern into a flat automaton.
func (c *Compiler) CompileString(pattern string) (*automaton.Automaton, error) {
	if err := c.config.Validate(); err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	if !utf8.ValidString(pattern) {
		return nil, &PatternError{Pattern: pattern, Err: fmt.Errorf("%w: pattern is not valid UTF-8", ErrInvalidPattern)}
	}

	// Parse the pattern using regexp/syntax
	re, err := syntax.Parse(pattern, c.config.parseFlags())
	if err != nil {
		return nil, &PatternError{
			Pattern: pattern,
			Err:     fmt.Errorf("%w: %w", ErrInvalidPattern, err),
		}
	}

	nfa, err := c.CompileRegexp(re)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}

	a, err := c.Flatten(nfa)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	return a, nil
}

// CompileRegexp compiles a parsed syntax.Regexp into a Thompson NFA
func (c *Compiler) CompileRegexp(re *syntax.Regexp) (*NFA, error) {
	c.builder = NewBuilder()
	c.depth = 0

	// Compile the regex into NFA states
	// Returns (start, end) state IDs for the compiled fragment
	start, end, err := c.compileRegexp(re)
	if err != nil {
		return nil, err
	}

	// Connect end to the final match state
	matchID := c.builder.AddMatch()
	if err := c.builder.Patch(end, matchID); err != nil {
		return nil, fmt.Errorf("failed to connect to match state: %w", err)
	}

	c.builder.SetStart(start)
	return c.builder.Build()
}

// compileRegexp recursively compiles a syntax.Regexp node.
// Returns (start, end) state IDs for the compiled fragment.
// The 'end' state is a state that needs to be patched to continue the automaton.
func (c *Compiler) compileRegexp(re *syntax.Regexp) (start, end StateID, err error) {
	// Check recursion depth
	c.depth++
	if c.depth > c.config.MaxRecursionDepth {
		return InvalidState, InvalidState, fmt.Errorf("%w: nesting deeper than %d", ErrTooComplex, c.config.MaxRecursionDepth)
	}
	defer func() { c.depth-- }()

	if c.builder.States() > c.config.MaxStates {
		return InvalidState, InvalidState, fmt.Errorf("%w: more than %d NFA states", ErrTooComplex, c.config.MaxStates)
	}

	switch re.Op {
	case syntax.OpLiteral:
		return c.compileLiteral(re.Rune, re.Flags&syntax.FoldCase != 0)
	case syntax.OpCharClass:
		return c.compileClass(re.Rune)
	case syntax.OpAnyChar:
		return c.compileClass([]rune{0, unicode.MaxRune})
	case syntax.OpAnyCharNotNL:
		return c.compileClass([]rune{0, '\n' - 1, '\n' + 1, unicode.MaxRune})
	case syntax.OpConcat:
		return c.compileConcat(re.Sub)
	case syntax.OpAlternate:
		return c.compileAlternate(re.Sub)
	case syntax.OpStar:
		return c.compileStar(re.Sub[0])
	case syntax.OpPlus:
		return c.compilePlus(re.Sub[0])
	case syntax.OpQuest:
		return c.compileQuest(re.Sub[0])
	case syntax.OpRepeat:
		return c.compileRepeat(re.Sub[0], re.Min, re.Max)
	case syntax.OpCapture:
		// Only start offsets are reported, so groups are transparent
		return c.compileRegexp(re.Sub[0])
	case syntax.OpBeginText:
		return c.compileLook(LookStartText)
	case syntax.OpEndText:
		return c.compileLook(LookEndText)
	case syntax.OpBeginLine:
		return c.compileLook(LookStartLine)
	case syntax.OpEndLine:
		return c.compileLook(LookEndLine)
	case syntax.OpWordBoundary:
		return c.compileLook(LookWordBoundary)
	case syntax.OpNoWordBoundary:
		return c.compileLook(LookNoWordBoundary)
	case syntax.OpEmptyMatch:
		return c.compileEmptyMatch()
	case syntax.OpNoMatch:
		return c.compileNoMatch()
	default:
		return InvalidState, InvalidState, fmt.Errorf("%w: unsupported regex operation %v", ErrInvalidPattern, re.Op)
	}
}

// compileLiteral compiles a literal string (sequence of runes)
func (c *Compiler) compileLiteral(runes []rune, foldCase bool) (start, end StateID, err error) {
	if len(runes) == 0 {
		return c.compileEmptyMatch()
	}

	prev, first := InvalidState, InvalidState
	for _, r := range runes {
		var id StateID
		if foldCase {
			id = c.builder.AddClass(foldRanges(r), InvalidState)
		} else {
			id = c.builder.AddRune(r, InvalidState)
		}
		if first == InvalidState {
			first = id
		}
		if prev != InvalidState {
			if err := c.builder.Patch(prev, id); err != nil {
				return InvalidState, InvalidState, err
			}
		}
		prev = id
	}

	return first, prev, nil
}

// foldRanges returns the case-folding orbit of r as single-rune ranges.
func foldRanges(r rune) []rune {
	orbit := []rune{r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		orbit = append(orbit, f)
	}
	slices.Sort(orbit)
	ranges := make([]rune, 0, 2*len(orbit))
	for _, f := range orbit {
		ranges = append(ranges, f, f)
	}
	return ranges
}

// compileClass compiles a character class like [a-zA-Z0-9] or a wildcard
func (c *Compiler) compileClass(ranges []rune) (start, end StateID, err error) {
	if len(ranges) == 0 {
		return c.compileNoMatch()
	}
	if size := classSize(ranges); size > c.config.MaxClassSize {
		return InvalidState, InvalidState, fmt.Errorf("%w: class of %d code points exceeds limit %d", ErrTooComplex, size, c.config.MaxClassSize)
	}
	id := c.builder.AddClass(ranges, InvalidState)
	return id, id, nil
}

// compileLook compiles a zero-width assertion
func (c *Compiler) compileLook(look Look) (start, end StateID, err error) {
	id := c.builder.AddLook(look, InvalidState)
	return id, id, nil
}

// compileConcat compiles concatenation (e.g., "abc")
func (c *Compiler) compileConcat(subs []*syntax.Regexp) (start, end StateID, err error) {
	if len(subs) == 0 {
		return c.compileEmptyMatch()
	}

	start, end, err = c.compileRegexp(subs[0])
	if err != nil {
		return InvalidState, InvalidState, err
	}

	// Chain the rest
	for _, sub := range subs[1:] {
		nextStart, nextEnd, err := c.compileRegexp(sub)
		if err != nil {
			return InvalidState, InvalidState, err
		}
		if err := c.builder.Patch(end, nextStart); err != nil {
			return InvalidState, InvalidState, err
		}
		end = nextEnd
	}

	return start, end, nil
}

// compileAlternate compiles alternation (e.g., "a|b|c")
func (c *Compiler) compileAlternate(subs []*syntax.Regexp) (start, end StateID, err error) {
	if len(subs) == 0 {
		return c.compileNoMatch()
	}
	if len(subs) == 1 {
		return c.compileRegexp(subs[0])
	}

	starts := make([]StateID, 0, len(subs))
	ends := make([]StateID, 0, len(subs))
	for _, sub := range subs {
		s, e, err := c.compileRegexp(sub)
		if err != nil {
			return InvalidState, InvalidState, err
		}
		starts = append(starts, s)
		ends = append(ends, e)
	}

	split := c.buildSplitChain(starts)

	// All alternatives converge on one join state
	join := c.builder.AddEpsilon(InvalidState)
	for _, e := range ends {
		if err := c.builder.Patch(e, join); err != nil {
			return InvalidState, InvalidState, err
		}
	}

	return split, join, nil
}

// buildSplitChain builds a chain of split states for alternation
// Split(alt1, Split(alt2, Split(alt3, ...)))
func (c *Compiler) buildSplitChain(targets []StateID) StateID {
	if len(targets) == 1 {
		return targets[0]
	}
	right := c.buildSplitChain(targets[1:])
	return c.builder.AddSplit(targets[0], right)
}

// compileStar compiles a* (zero or more)
func (c *Compiler) compileStar(sub *syntax.Regexp) (start, end StateID, err error) {
	subStart, subEnd, err := c.compileRegexp(sub)
	if err != nil {
		return InvalidState, InvalidState, err
	}

	// split -> [sub, end]; sub -> split (back-edge)
	end = c.builder.AddEpsilon(InvalidState)
	split := c.builder.AddSplit(subStart, end)
	if err := c.builder.Patch(subEnd, split); err != nil {
		return InvalidState, InvalidState, err
	}

	return split, end, nil
}

// compilePlus compiles a+ (one or more)
func (c *Compiler) compilePlus(sub *syntax.Regexp) (start, end StateID, err error) {
	subStart, subEnd, err := c.compileRegexp(sub)
	if err != nil {
		return InvalidState, InvalidState, err
	}

	// sub -> split -> [sub, end]
	end = c.builder.AddEpsilon(InvalidState)
	split := c.builder.AddSplit(subStart, end)
	if err := c.builder.Patch(subEnd, split); err != nil {
		return InvalidState, InvalidState, err
	}

	return subStart, end, nil
}

// compileQuest compiles a? (zero or one)
func (c *Compiler) compileQuest(sub *syntax.Regexp) (start, end StateID, err error) {
	subStart, subEnd, err := c.compileRegexp(sub)
	if err != nil {
		return InvalidState, InvalidState, err
	}

	// Either match sub or skip straight to the successor
	end = c.builder.AddEpsilon(InvalidState)
	split := c.builder.AddSplit(subStart, end)
	if err := c.builder.Patch(subEnd, end); err != nil {
		return InvalidState, InvalidState, err
	}

	return split, end, nil
}

// compileRepeat compiles a{m,n} (min to max repetitions)
func (c *Compiler) compileRepeat(sub *syntax.Regexp, minCount, maxCount int) (start, end StateID, err error) {
	if maxCount == -1 {
		// a{m,} = aaa...a* (minCount copies + star)
		return c.compileRepeatMin(sub, minCount)
	}
	if minCount > maxCount {
		return InvalidState, InvalidState, fmt.Errorf("%w: invalid repeat range {%d,%d}", ErrInvalidPattern, minCount, maxCount)
	}

	// a{m,n} = minCount copies + (maxCount-minCount) optional copies
	subs := make([]*syntax.Regexp, 0, maxCount)
	for i := 0; i < minCount; i++ {
		subs = append(subs, sub)
	}
	for i := 0; i < maxCount-minCount; i++ {
		subs = append(subs, &syntax.Regexp{
			Op:  syntax.OpQuest,
			Sub: []*syntax.Regexp{sub},
		})
	}
	return c.compileConcat(subs)
}

// compileRepeatMin compiles a{m,}
func (c *Compiler) compileRepeatMin(sub *syntax.Regexp, minCount int) (start, end StateID, err error) {
	subs := make([]*syntax.Regexp, 0, minCount+1)
	for i := 0; i < minCount; i++ {
		subs = append(subs, sub)
	}
	subs = append(subs, &syntax.Regexp{
		Op:  syntax.OpStar,
		Sub: []*syntax.Regexp{sub},
	})
	return c.compileConcat(subs)
}

// compileEmptyMatch compiles an epsilon transition (matches without consuming input)
func (c *Compiler) compileEmptyMatch() (start, end StateID, err error) {
	id := c.builder.AddEpsilon(InvalidState)
	return id, id, nil
}

// compileNoMatch compiles a fragment that never matches. The end state is
// unreachable but patchable, so the fragment composes like any other.
func (c *Compiler) compileNoMatch() (start, end StateID, err error) {
	end = c.builder.AddEpsilon(InvalidState)
	return c.builder.AddFail(), end, nil
}
