// Command oclgrep prints the code point offsets at which a regular
// expression matches in a UTF-8 file.
//
//	oclgrep [options] REGEX FILE
//
// Matching runs on a compute device in windows of --max-chunk-size code
// points; matches spanning two windows are not reported.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/coregx/oclgrep"
	"github.com/coregx/oclgrep/engine"
	"github.com/coregx/oclgrep/internal/logging"
	"github.com/coregx/oclgrep/kernelgen"
	"github.com/coregx/oclgrep/nfa"
	"github.com/coregx/oclgrep/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdout, os.Stderr, os.Getenv)
}

// userError is a failure caused by the invocation rather than by oclgrep.
type userError struct {
	msg string
}

func (e *userError) Error() string {
	return e.msg
}

// errUsage reports an invalid command line.
var errUsage = errors.New("invalid command line")

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

type options struct {
	regex string
	file  string

	normalizeRegex bool
	normalizeFile  bool
	printGraph     bool
	printProfile   bool
	noOutput       bool
	verbose        bool
	maxChunkSize   int
	emitKernel     string
	device         string
}

func runWithArgs(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	err := execute(args, stdout, stderr, getenv)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp), errors.Is(err, errUsage):
		// the flag set has already printed the problem and the usage
		return 1
	case isUserError(err):
		_ = writeln(stderr, err)
		return 1
	default:
		_ = writef(stderr, "%s\n%s\n%s\n%v\n%s\n",
			"=========================================================================",
			"there was an internal error, please report this as a bug",
			"================================= ERROR =================================",
			err,
			"=========================================================================")
		return 1
	}
}

func isUserError(err error) bool {
	var (
		ue  *userError
		pe  *nfa.PatternError
		rce *runner.ConfigError
		ece *engine.ConfigError
	)
	return errors.As(err, &ue) || errors.As(err, &pe) || errors.As(err, &rce) || errors.As(err, &ece)
}

func execute(args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	if !utf8Locale(getenv) {
		return userErrorf("sorry, this program only works on UTF8 systems")
	}
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()

	log := logging.NewLogger(opts.verbose)
	log.SetOutput(stderr)

	pattern := opts.regex
	if opts.normalizeRegex {
		pattern = norm.NFKC.String(pattern)
	}

	cfg := oclgrep.DefaultConfig()
	cfg.MaxWindowSize = opts.maxChunkSize
	cfg.Profiling = opts.printProfile

	log.Section("compile")
	re, err := oclgrep.Compile(pattern, cfg)
	if err != nil {
		return err
	}
	a := re.Automaton()
	log.Log("pattern %q: %s", pattern, a)
	if opts.printGraph {
		if err := a.Dump(out); err != nil {
			return err
		}
	}
	if opts.emitKernel != "" {
		if err := emitKernel(opts.emitKernel, re); err != nil {
			return err
		}
		log.Log("kernel source written to %s", opts.emitKernel)
	}

	engCfg := engine.DefaultConfig()
	engCfg.DeviceName = opts.device
	engCfg.Logger = log
	eng, err := engine.Initialize(engCfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	s, err := oclgrep.NewSearcher(eng, re, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return userErrorf("cannot read %s: %v", opts.file, errors.Unwrap(err))
	}
	if len(data) == 0 {
		return userErrorf("Empty files cannot be processed!")
	}
	text := string(data)
	if opts.normalizeFile {
		// offsets refer to the normalized text
		text = norm.NFKC.String(text)
	}

	log.Section("search")
	err = s.FindAll([]rune(text), func(offset int) error {
		if opts.noOutput {
			return nil
		}
		return writef(out, "%d\n", offset)
	})
	if err != nil {
		return err
	}

	if opts.printProfile {
		for i, p := range s.TakeProfiles() {
			if err := writef(out, "profile chunk %d: %s\n", i, p); err != nil {
				return err
			}
		}
	}
	return out.Flush()
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("oclgrep", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.normalizeRegex, "normalize-regex", false, "apply NFKC normalization to regex")
	fs.BoolVar(&opts.normalizeFile, "normalize-file", false, "apply NFKC normalization to data from input file")
	fs.BoolVar(&opts.printGraph, "print-graph", false, "print graph data to stdout")
	fs.BoolVar(&opts.printProfile, "print-profile", false, "print device profiling data to stdout")
	fs.BoolVar(&opts.noOutput, "no-output", false, "do not print actual output (for debug reasons)")
	fs.BoolVar(&opts.verbose, "verbose", false, "log device and compilation details to stderr")
	fs.IntVar(&opts.maxChunkSize, "max-chunk-size", runner.DefaultMaxWindowSize,
		"max number of elements that get pushed to the device per round, each element is 4byte")
	fs.StringVar(&opts.emitKernel, "emit-kernel", "", "write standalone Go matcher source for the regex to `file`")
	fs.StringVar(&opts.device, "device", "", "use the first device whose name contains `name`")
	fs.Usage = func() {
		_ = writeln(stderr, "oclgrep REGEX FILE")
		_ = writeln(stderr, "Allowed options:")
		fs.PrintDefaults()
	}

	positional, err := parseInterleaved(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, err
		}
		return opts, errUsage
	}
	if len(positional) != 2 {
		return opts, userErrorf("expected REGEX and FILE arguments, got %d argument(s)", len(positional))
	}
	opts.regex, opts.file = positional[0], positional[1]
	return opts, nil
}

// parseInterleaved parses flags placed before, between or after positional
// arguments. Everything after "--" is positional.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// utf8Locale reports whether the process locale uses UTF-8, following the
// POSIX precedence of LC_ALL, LC_CTYPE and LANG.
func utf8Locale(getenv func(string) string) bool {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := getenv(key); v != "" {
			v = strings.ToLower(v)
			return strings.Contains(v, "utf-8") || strings.Contains(v, "utf8")
		}
	}
	return false
}

func emitKernel(path string, re *oclgrep.Regex) error {
	cfg := kernelgen.DefaultConfig()
	cfg.Pattern = re.String()
	src, err := kernelgen.Generate(re.Automaton(), cfg)
	if err != nil {
		return userErrorf("cannot emit kernel: %v", err)
	}
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return userErrorf("cannot write %s: %v", path, errors.Unwrap(err))
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
