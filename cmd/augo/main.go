// Command augo compiles augo source into bytecode and runs it on the augo
// virtual machine, or drops into an interactive REPL with no arguments.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/dr8co/augo/code"
	"github.com/dr8co/augo/engine"
	"github.com/dr8co/augo/input"
	"github.com/dr8co/augo/ir"
	"github.com/dr8co/augo/lexer"
	"github.com/dr8co/augo/parser"
	"github.com/dr8co/augo/repl"
	"github.com/dr8co/augo/stdlib/mathlib"
	"github.com/dr8co/augo/stdlib/printlib"
	"github.com/dr8co/augo/value"
)

const version = "0.1.0"

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `augo v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    augo compiles augo source code into bytecode and runs it in a virtual
    machine. Without any flags, it starts an interactive REPL.

OPTIONS:
    -f, --file <path>       Execute an augo script file
    -e, --eval <code>       Evaluate an augo expression and print the result
    -lib <dir>              Directory scanned for native extension libraries
    -d, --debug             Enable debug mode (prints bytecode disassembly)
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    %s
    %s -f script.aug
    %s -e "1 + 2"
    %s -f script.aug -lib ./libs -d

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	fileFlag := flag.String("file", "", "Execute an augo script file")
	evalFlag := flag.String("eval", "", "Evaluate an augo expression and print the result")
	libFlag := flag.String("lib", "", "Directory scanned for native extension libraries")
	debugFlag := flag.Bool("debug", false, "Enable debug mode (prints bytecode disassembly)")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(fileFlag, "f", "", "Execute an augo script file")
	flag.StringVar(evalFlag, "e", "", "Evaluate an augo expression and print the result")
	flag.BoolVar(debugFlag, "d", false, "Enable debug mode (prints bytecode disassembly)")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("augo v%s\n", version)
		return
	}

	if *fileFlag != "" {
		executeFile(*fileFlag, *libFlag, *debugFlag)
		return
	}

	if *evalFlag != "" {
		evaluateExpression(*evalFlag, *libFlag, *debugFlag)
		return
	}

	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	fmt.Println("Hello", username+",", "welcome to augo!")
	fmt.Println("Feel free to type in augo code. (Ctrl+D or Ctrl+C to exit)")

	if err := repl.Start(username, repl.Options{Debug: *debugFlag}); err != nil {
		fmt.Printf("repl error: %s\n", err)
		os.Exit(1)
	}
}

func newEngine(libDir string) *engine.Engine {
	eng := engine.Startup(libDir)
	eng.RegisterTable(printlib.Table(os.Stdout))
	eng.RegisterTable(mathlib.Table())
	return eng
}

// compileSource runs the lexer -> parser -> ir pipeline directly (rather
// than through engine.Eval/Execute) so -d can print the disassembly before
// the VM runs.
func compileSource(name, src string) (*code.Bytecode, error) {
	in := input.OpenString(name, src)
	l := lexer.New(in)
	p := parser.New(l)
	root := p.ParseRoot()
	if errs := p.Errors(); len(errs) > 0 {
		printParserErrors(errs)
		os.Exit(1)
	}

	gen := ir.New()
	bc, err := gen.Generate(root)
	if err != nil {
		return nil, err
	}
	return bc, nil
}

func executeFile(filename, libDir string, debug bool) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Executing file: %s\n", absolute)

	//nolint:gosec // operator-supplied script path, not user input over a network boundary
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	if debug {
		bc, err := compileSource(absolute, string(content))
		if err != nil {
			fmt.Printf("Compilation error: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(bc.Instructions.String())
	}

	eng := newEngine(libDir)
	defer eng.Shutdown()

	if err := eng.Execute(absolute); err != nil {
		fmt.Printf("VM error: %s\n", err)
		os.Exit(1)
	}
}

func evaluateExpression(expr, libDir string, debug bool) {
	if debug {
		bc, err := compileSource("<eval>", expr)
		if err != nil {
			fmt.Printf("Compilation error: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(bc.Instructions.String())
	}

	eng := newEngine(libDir)
	defer eng.Shutdown()

	v, err := eng.Eval(expr)
	if err != nil {
		fmt.Printf("VM error: %s\n", err)
		os.Exit(1)
	}
	if v.Type() != value.None {
		fmt.Println(value.Display(v))
	}
}

func printParserErrors(errors []string) {
	_, _ = fmt.Fprintln(os.Stderr, "Parser errors:")
	for _, msg := range errors {
		_, _ = fmt.Fprintln(os.Stderr, "\t"+msg)
	}
}
