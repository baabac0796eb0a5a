// Package kernelgen generates standalone Go source for the match kernel of
// one automaton.
//
// The generated file embeds the automaton's storage as a uint32 table and
// implements the same walk as the device kernel, sequentially over every
// start offset of a window. It has no dependencies, so it can be vendored
// into programs that need the matcher without a compute device.
package kernelgen

import (
	"bytes"
	"fmt"
	"go/token"
	"unicode"

	"github.com/dave/jennifer/jen"

	"github.com/coregx/oclgrep/automaton"
)

// DefaultMaxTableWords bounds the size of the embedded table.
const DefaultMaxTableWords = 1 << 20

// Config holds the configuration for code generation.
type Config struct {
	Package  string // package clause of the generated file
	FuncName string // name of the exported match function
	Pattern  string // source pattern, recorded in the header comment

	// MaxTableWords bounds the storage words embedded in the file.
	// Zero uses DefaultMaxTableWords.
	MaxTableWords int
}

// DefaultConfig returns a configuration generating package "matcher" with a
// Match function.
func DefaultConfig() Config {
	return Config{
		Package:       "matcher",
		FuncName:      "Match",
		MaxTableWords: DefaultMaxTableWords,
	}
}

// Generate returns the formatted Go source of a matcher for a.
func Generate(a *automaton.Automaton, cfg Config) ([]byte, error) {
	if cfg.MaxTableWords == 0 {
		cfg.MaxTableWords = DefaultMaxTableWords
	}
	switch {
	case !token.IsIdentifier(cfg.Package):
		return nil, fmt.Errorf("kernelgen: invalid package name %q", cfg.Package)
	case !token.IsIdentifier(cfg.FuncName) || !token.IsExported(cfg.FuncName):
		return nil, fmt.Errorf("kernelgen: match function name %q must be an exported identifier", cfg.FuncName)
	case a.Len() > cfg.MaxTableWords:
		return nil, fmt.Errorf("kernelgen: automaton of %d words exceeds limit of %d", a.Len(), cfg.MaxTableWords)
	}

	g := &generator{a: a, cfg: cfg, file: jen.NewFile(cfg.Package)}
	g.file.HeaderComment("Code generated by oclgrep. DO NOT EDIT.")
	if cfg.Pattern != "" {
		g.file.HeaderComment(fmt.Sprintf("Pattern: %q", cfg.Pattern))
	}
	g.constants()
	g.table()
	g.stateSet()
	g.find()
	g.guards()
	g.enter()
	g.walk()
	g.match()

	var buf bytes.Buffer
	if err := g.file.Render(&buf); err != nil {
		return nil, fmt.Errorf("kernelgen: render: %w", err)
	}
	return buf.Bytes(), nil
}

type generator struct {
	a    *automaton.Automaton
	cfg  Config
	file *jen.File
}

var guardConsts = []struct {
	name string
	sym  automaton.Word
}{
	{"guardAlways", automaton.GuardAlways},
	{"guardBeginText", automaton.GuardBeginText},
	{"guardEndText", automaton.GuardEndText},
	{"guardBeginLine", automaton.GuardBeginLine},
	{"guardEndLine", automaton.GuardEndLine},
	{"guardWordBoundary", automaton.GuardWordBoundary},
	{"guardNoWordBoundary", automaton.GuardNoWordBoundary},
}

func (g *generator) constants() {
	g.file.Const().Defs(
		jen.Id("numStates").Op("=").Lit(int(g.a.N())),
		jen.Id("fanOut").Op("=").Lit(int(g.a.FanOut())),
		jen.Id("reject").Op("=").Lit(int(automaton.Reject)),
		jen.Id("accept").Op("=").Lit(int(automaton.Accept)),
		jen.Id("maxRune").Op("=").Lit(int(unicode.MaxRune)),
	)
	defs := make([]jen.Code, 0, len(guardConsts))
	for _, gc := range guardConsts {
		defs = append(defs, jen.Id(gc.name).Op("=").Lit(int(gc.sym)))
	}
	g.file.Comment("Zero-width guard symbols.")
	g.file.Const().Defs(defs...)
}

// table emits the storage, one line for the base offsets and one per record.
func (g *generator) table() {
	a := g.a
	n := a.N()
	lines := make([]jen.Code, 0, n+1)

	bases := make([]jen.Code, 0, n)
	for i := uint32(0); i < n; i++ {
		bases = append(bases, jen.Lit(int(a.Word(i))))
	}
	lines = append(lines, jen.List(bases...))

	for i := uint32(0); i < n; i++ {
		base := a.Base(i)
		end := base + 1 + a.SlotCount(i)*(1+a.FanOut())
		words := make([]jen.Code, 0, end-base)
		for w := base; w < end; w++ {
			words = append(words, jen.Lit(int(a.Word(w))))
		}
		lines = append(lines, jen.List(words...))
	}

	g.file.Commentf("table is the automaton storage: %d base offsets, then one record per state.", n)
	g.file.Var().Id("table").Op("=").Index().Uint32().Custom(jen.Options{
		Open:      "{",
		Close:     "}",
		Separator: ",",
		Multi:     true,
	}, lines...)
}

func (g *generator) stateSet() {
	g.file.Type().Id("stateSet").Struct(
		jen.Id("dense").Index().Uint32(),
		jen.Id("member").Index().Bool(),
	)

	g.file.Func().Params(jen.Id("s").Op("*").Id("stateSet")).Id("clear").Params().Block(
		jen.For(jen.List(jen.Id("_"), jen.Id("st")).Op(":=").Range().Id("s").Dot("dense")).Block(
			jen.Id("s").Dot("member").Index(jen.Id("st")).Op("=").False(),
		),
		jen.Id("s").Dot("dense").Op("=").Id("s").Dot("dense").Index(jen.Empty(), jen.Lit(0)),
	)

	g.file.Func().Params(jen.Id("s").Op("*").Id("stateSet")).Id("insert").Params(jen.Id("st").Uint32()).Bool().Block(
		jen.If(jen.Id("s").Dot("member").Index(jen.Id("st"))).Block(jen.Return(jen.False())),
		jen.Id("s").Dot("member").Index(jen.Id("st")).Op("=").True(),
		jen.Id("s").Dot("dense").Op("=").Append(jen.Id("s").Dot("dense"), jen.Id("st")),
		jen.Return(jen.True()),
	)
}

// find emits the binary search over a state's sorted slots. It returns the
// table index of the slot's symbol word.
func (g *generator) find() {
	slot := func(k jen.Code) *jen.Statement {
		return jen.Id("base").Op("+").Lit(1).Op("+").Add(k).Op("*").Parens(jen.Lit(1).Op("+").Id("fanOut"))
	}
	g.file.Func().Id("find").Params(jen.List(jen.Id("state"), jen.Id("sym")).Uint32()).Params(jen.Uint32(), jen.Bool()).Block(
		jen.Id("base").Op(":=").Id("table").Index(jen.Id("state")),
		jen.List(jen.Id("lo"), jen.Id("hi")).Op(":=").List(jen.Uint32().Call(jen.Lit(0)), jen.Id("table").Index(jen.Id("base"))),
		jen.For(jen.Id("lo").Op("<").Id("hi")).Block(
			jen.Id("mid").Op(":=").Id("lo").Op("+").Parens(jen.Id("hi").Op("-").Id("lo")).Op("/").Lit(2),
			jen.Id("at").Op(":=").Add(slot(jen.Id("mid"))),
			jen.Switch(jen.Id("s").Op(":=").Id("table").Index(jen.Id("at")), jen.Empty()).Block(
				jen.Case(jen.Id("s").Op("==").Id("sym")).Block(jen.Return(jen.Id("at"), jen.True())),
				jen.Case(jen.Id("s").Op("<").Id("sym")).Block(jen.Id("lo").Op("=").Id("mid").Op("+").Lit(1)),
				jen.Default().Block(jen.Id("hi").Op("=").Id("mid")),
			),
		),
		jen.Return(jen.Lit(0), jen.False()),
	)
}

func (g *generator) guards() {
	g.file.Func().Id("isWord").Params(jen.Id("window").Index().Rune(), jen.Id("i").Int()).Bool().Block(
		jen.If(jen.Id("i").Op("<").Lit(0).Op("||").Id("i").Op(">=").Len(jen.Id("window"))).Block(jen.Return(jen.False())),
		jen.Id("r").Op(":=").Id("window").Index(jen.Id("i")),
		jen.Return(
			jen.Id("r").Op("==").LitRune('_').
				Op("||").Parens(jen.LitRune('0').Op("<=").Id("r").Op("&&").Id("r").Op("<=").LitRune('9')).
				Op("||").Parens(jen.LitRune('a').Op("<=").Id("r").Op("&&").Id("r").Op("<=").LitRune('z')).
				Op("||").Parens(jen.LitRune('A').Op("<=").Id("r").Op("&&").Id("r").Op("<=").LitRune('Z')),
		),
	)

	pos := func() *jen.Statement { return jen.Id("pos") }
	length := func() *jen.Statement { return jen.Len(jen.Id("window")) }
	isWord := func(i jen.Code) *jen.Statement { return jen.Id("isWord").Call(jen.Id("window"), i) }
	g.file.Func().Id("guardHolds").Params(jen.Id("sym").Uint32(), jen.Id("window").Index().Rune(), jen.Id("pos").Int()).Bool().Block(
		jen.Switch(jen.Id("sym")).Block(
			jen.Case(jen.Id("guardAlways")).Block(jen.Return(jen.True())),
			jen.Case(jen.Id("guardBeginText")).Block(jen.Return(pos().Op("==").Lit(0))),
			jen.Case(jen.Id("guardEndText")).Block(jen.Return(pos().Op("==").Add(length()))),
			jen.Case(jen.Id("guardBeginLine")).Block(jen.Return(
				pos().Op("==").Lit(0).Op("||").Id("window").Index(pos().Op("-").Lit(1)).Op("==").LitRune('\n'),
			)),
			jen.Case(jen.Id("guardEndLine")).Block(jen.Return(
				pos().Op("==").Add(length()).Op("||").Id("window").Index(pos()).Op("==").LitRune('\n'),
			)),
			jen.Case(jen.Id("guardWordBoundary")).Block(jen.Return(
				isWord(pos().Op("-").Lit(1)).Op("!=").Add(isWord(pos())),
			)),
			jen.Case(jen.Id("guardNoWordBoundary")).Block(jen.Return(
				isWord(pos().Op("-").Lit(1)).Op("==").Add(isWord(pos())),
			)),
		),
		jen.Return(jen.False()),
	)
}

// targets emits a loop over the real targets of the slot whose symbol is at
// table index slot, running body with t bound to each target.
func targets(slot string, body ...jen.Code) *jen.Statement {
	return jen.For(jen.Id("j").Op(":=").Uint32().Call(jen.Lit(1)), jen.Id("j").Op("<=").Id("fanOut"), jen.Id("j").Op("++")).Block(
		append([]jen.Code{
			jen.Id("t").Op(":=").Id("table").Index(jen.Id(slot).Op("+").Id("j")),
			jen.If(jen.Id("t").Op("==").Id("reject")).Block(jen.Break()),
		}, body...)...,
	)
}

func (g *generator) enter() {
	g.file.Comment("enter adds state and its guard closure at pos to set.")
	g.file.Func().Id("enter").Params(
		jen.Id("set").Op("*").Id("stateSet"),
		jen.Id("state").Uint32(),
		jen.Id("window").Index().Rune(),
		jen.Id("pos").Int(),
	).Block(
		jen.If(jen.Op("!").Id("set").Dot("insert").Call(jen.Id("state"))).Block(jen.Return()),
		jen.Id("stack").Op(":=").Index().Uint32().Values(jen.Id("state")),
		jen.For(jen.Len(jen.Id("stack")).Op(">").Lit(0)).Block(
			jen.Id("st").Op(":=").Id("stack").Index(jen.Len(jen.Id("stack")).Op("-").Lit(1)),
			jen.Id("stack").Op("=").Id("stack").Index(jen.Empty(), jen.Len(jen.Id("stack")).Op("-").Lit(1)),
			jen.Id("base").Op(":=").Id("table").Index(jen.Id("st")),
			jen.For(jen.Id("k").Op(":=").Id("table").Index(jen.Id("base")), jen.Id("k").Op(">").Lit(0), jen.Id("k").Op("--")).Block(
				jen.Id("slot").Op(":=").Id("base").Op("+").Lit(1).Op("+").Parens(jen.Id("k").Op("-").Lit(1)).Op("*").Parens(jen.Lit(1).Op("+").Id("fanOut")),
				jen.If(jen.Id("table").Index(jen.Id("slot")).Op("<=").Id("maxRune")).Block(jen.Break()),
				jen.If(jen.Op("!").Id("guardHolds").Call(jen.Id("table").Index(jen.Id("slot")), jen.Id("window"), jen.Id("pos"))).Block(jen.Continue()),
				targets("slot",
					jen.If(jen.Id("set").Dot("insert").Call(jen.Id("t"))).Block(
						jen.Id("stack").Op("=").Append(jen.Id("stack"), jen.Id("t")),
					),
				),
			),
		),
	)
}

func (g *generator) walk() {
	g.file.Func().Id("walk").Params(
		jen.Id("window").Index().Rune(),
		jen.Id("start").Int(),
		jen.List(jen.Id("cur"), jen.Id("next")).Op("*").Id("stateSet"),
	).Bool().Block(
		jen.Id("cur").Dot("clear").Call(),
		jen.Id("enter").Call(jen.Id("cur"), jen.Lit(0), jen.Id("window"), jen.Id("start")),
		jen.For(jen.Id("pos").Op(":=").Id("start"), jen.Empty(), jen.Id("pos").Op("++")).Block(
			jen.If(jen.Id("cur").Dot("member").Index(jen.Id("accept"))).Block(jen.Return(jen.True())),
			jen.If(jen.Id("pos").Op("==").Len(jen.Id("window")).Op("||").Len(jen.Id("cur").Dot("dense")).Op("==").Lit(0)).Block(
				jen.Return(jen.False()),
			),
			jen.Id("r").Op(":=").Id("window").Index(jen.Id("pos")),
			jen.If(jen.Id("r").Op("<").Lit(0).Op("||").Id("r").Op(">").Id("maxRune")).Block(jen.Return(jen.False())),
			jen.Id("next").Dot("clear").Call(),
			jen.For(jen.List(jen.Id("_"), jen.Id("st")).Op(":=").Range().Id("cur").Dot("dense")).Block(
				jen.List(jen.Id("slot"), jen.Id("ok")).Op(":=").Id("find").Call(jen.Id("st"), jen.Uint32().Call(jen.Id("r"))),
				jen.If(jen.Op("!").Id("ok")).Block(jen.Continue()),
				targets("slot",
					jen.Id("enter").Call(jen.Id("next"), jen.Id("t"), jen.Id("window"), jen.Id("pos").Op("+").Lit(1)),
				),
			),
			jen.List(jen.Id("cur"), jen.Id("next")).Op("=").List(jen.Id("next"), jen.Id("cur")),
		),
	)
}

func (g *generator) match() {
	newSet := func() *jen.Statement {
		return jen.Op("&").Id("stateSet").Values(jen.Dict{
			jen.Id("member"): jen.Make(jen.Index().Bool(), jen.Id("numStates")),
		})
	}
	name := g.cfg.FuncName
	g.file.Commentf("%s returns the offsets of window at which a match begins, in ascending order.", name)
	g.file.Func().Id(name).Params(jen.Id("window").Index().Rune()).Index().Int().Block(
		jen.List(jen.Id("cur"), jen.Id("next")).Op(":=").List(newSet(), newSet()),
		jen.Var().Id("out").Index().Int(),
		jen.For(jen.Id("start").Op(":=").Range().Id("window")).Block(
			jen.If(jen.Id("walk").Call(jen.Id("window"), jen.Id("start"), jen.Id("cur"), jen.Id("next"))).Block(
				jen.Id("out").Op("=").Append(jen.Id("out"), jen.Id("start")),
			),
		),
		jen.Return(jen.Id("out")),
	)
}
