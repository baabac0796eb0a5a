package kernelgen

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"regexp"
	"strings"
	"testing"

	"github.com/coregx/oclgrep/automaton"
	"github.com/coregx/oclgrep/nfa"
)

func compile(t *testing.T, pattern string) *automaton.Automaton {
	t.Helper()
	a, err := nfa.Compile([]rune(pattern))
	if err != nil {
		t.Fatalf("Compile(%q): %v", pattern, err)
	}
	return a
}

// typeCheck parses and type-checks generated source. The generated file
// has no imports, so no importer is needed.
func typeCheck(t *testing.T, src []byte) *ast.File {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "matcher.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	conf := types.Config{}
	if _, err := conf.Check(f.Name.Name, fset, []*ast.File{f}, nil); err != nil {
		t.Fatalf("generated source does not type-check: %v\n%s", err, src)
	}
	return f
}

func TestGenerate(t *testing.T) {
	patterns := []string{"ab", "a|b", "a*", `^\bfoo$`, "(?m)^x|y$", "[a-c]+d", "\\Bz"}
	for _, p := range patterns {
		t.Run(p, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Pattern = p
			src, err := Generate(compile(t, p), cfg)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			f := typeCheck(t, src)
			if f.Name.Name != "matcher" {
				t.Errorf("package = %s, want matcher", f.Name.Name)
			}
			if !strings.HasPrefix(string(src), "// Code generated by oclgrep. DO NOT EDIT.") {
				t.Errorf("missing generated-code header:\n%s", src)
			}
			if !strings.Contains(string(src), "func Match(window []rune) []int") {
				t.Errorf("missing Match function:\n%s", src)
			}
		})
	}
}

func TestGenerate_Table(t *testing.T) {
	a := compile(t, "ab")
	src, err := Generate(a, Config{Package: "ab", FuncName: "FindAB"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(src)
	for _, want := range []string{
		`package ab\b`,
		`func FindAB\(window \[\]rune\) \[\]int`,
		`numStates\s+= 4`,
		`fanOut\s+= 1`,
		// base offsets, then the records of START, REJECT, ACCEPT and state 3
		`if i < 0 \|\| i >= len\(window\) \{`,
		// elements that are not code points stop the walk
		`if r < 0 \|\| r > maxRune \{\s*return false`,
		`var table = \[\]uint32\{\s*4, 7, 8, 9,\s*1, 97, 3,\s*0,\s*0,\s*1, 98, 2,\s*\}`,
	} {
		if !regexp.MustCompile(want).MatchString(s) {
			t.Errorf("generated source does not match %s:\n%s", want, s)
		}
	}
	typeCheck(t, src)
}

func TestGenerate_Errors(t *testing.T) {
	a := compile(t, "[a-z]+")
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"package", Config{Package: "not valid", FuncName: "Match"}, "invalid package name"},
		{"unexported", Config{Package: "m", FuncName: "match"}, "exported identifier"},
		{"keyword", Config{Package: "m", FuncName: "func"}, "exported identifier"},
		{"too large", Config{Package: "m", FuncName: "Match", MaxTableWords: 10}, "exceeds limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(a, tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}
