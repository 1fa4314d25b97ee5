package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/arkanis/lisp.c/lisp"
	"github.com/arkanis/lisp.c/manifest"
	"github.com/arkanis/lisp.c/reader"
	"github.com/arkanis/lisp.c/server"
	"github.com/arkanis/lisp.c/vm"

	_ "github.com/tliron/commonlog/simple"
)

// verbosity is a counting flag: -v increments, -v=N sets.
type verbosity int

func (v *verbosity) String() string { return strconv.Itoa(int(*v)) }

func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid verbosity %q", s)
	}
	*v = verbosity(n)
	return nil
}

func (v *verbosity) IsBoolFlag() bool { return true }

func main() {
	var verbose verbosity
	flag.Var(&verbose, "v", "Verbose logging (repeat or use -v=N)")
	interpret := flag.Bool("i", false, "Interpret only: evaluate every form with the tree-walker")
	disasm := flag.Bool("disasm", false, "Print the bytecode of every compiled top-level form")
	lspMode := flag.Bool("lsp", false, "Serve the language server protocol on stdio")
	expr := flag.String("e", "", "Evaluate an expression and print its result")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lisp [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Lisp file, or starts a REPL when no file is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lisp                      # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  lisp prog.lisp            # Run a file\n")
		fmt.Fprintf(os.Stderr, "  lisp -disasm prog.lisp    # Run a file, printing bytecode\n")
		fmt.Fprintf(os.Stderr, "  lisp -e '(+ 1 2)'         # Evaluate and print\n")
		fmt.Fprintf(os.Stderr, "  lisp -lsp                 # Start language server\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default(".")
	}
	for _, key := range m.Unknown {
		fmt.Fprintf(os.Stderr, "Warning: unknown key %s in %s\n", key, manifest.FileName)
	}

	level := m.Log.Verbosity
	if int(verbose) > level {
		level = int(verbose)
	}
	commonlog.Configure(level, nil)

	opts := lisp.Options{
		Compile:   m.CompileEnabled() && !*interpret,
		StackSize: m.Runtime.StackSize,
	}
	if *disasm || m.Runtime.Disasm {
		opts.Disasm = os.Stdout
	}
	rt := lisp.New(opts)

	defer func() {
		if r := recover(); r != nil {
			if fault, ok := r.(*vm.Fault); ok {
				fmt.Fprintf(os.Stderr, "Fatal: %v\n", fault)
				os.Exit(2)
			}
			panic(r)
		}
	}()

	for _, path := range m.PreludePaths() {
		if _, err := rt.EvalFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading prelude: %v\n", err)
			os.Exit(1)
		}
	}

	if *lspMode {
		if err := server.NewLSP(rt).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *expr != "" {
		result, err := rt.EvalString(*expr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(vm.Sprint(result))
		return
	}

	file := flag.Arg(0)
	if file == "" {
		file = m.EntryPath()
	}
	if file != "" {
		if _, err := rt.EvalFile(file); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runREPL(rt, m)
}

func runREPL(rt *lisp.Runtime, m *manifest.Manifest) {
	mode := "compile"
	if !rt.Compiling() {
		mode = "interpret"
	}
	fmt.Printf("Lisp REPL (%s mode, Ctrl-D to quit)\n", mode)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		start := strings.LastIndexAny(line, " \t()'") + 1
		var out []string
		for _, name := range rt.Names() {
			if strings.HasPrefix(name, line[start:]) {
				out = append(out, line[:start]+name)
			}
		}
		return out
	})

	histPath := m.HistoryPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	cont := strings.Repeat(".", len(strings.TrimRight(m.Repl.Prompt, " "))) + " "
	for {
		src, ok := readInput(ln, m.Repl.Prompt, cont)
		if !ok {
			fmt.Println()
			return
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		result, err := rt.EvalString(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Println(vm.Sprint(result))
	}
}

// readInput reads lines until they form complete input. It reports false
// at end of input.
func readInput(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	for {
		p := prompt
		if b.Len() > 0 {
			p = cont
		}
		line, err := ln.Prompt(p)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, err := reader.ReadAll(src); errors.Is(err, reader.ErrIncomplete) {
			continue
		}
		return src, true
	}
}
