package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/tetratelabs/bfjit"
	"github.com/tetratelabs/bfjit/internal/bfir"
)

func main() {
	doMain(os.Stdin, os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdIn io.Reader, stdOut, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "compile":
		doCompile(flag.Args()[1:], stdOut, stdErr, exit)
	case "run":
		doRun(flag.Args()[1:], stdIn, stdOut, stdErr, exit)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doCompile(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("compile", flag.ContinueOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var ir bool
	flags.BoolVar(&ir, "ir", false, "print the lowered operations to stdout")

	if err := flags.Parse(args); err != nil {
		exit(1)
	}

	if help {
		printCompileUsage(stdErr, flags)
		exit(0)
	}

	source := readSource(flags, stdErr, exit, printCompileUsage)

	ops, err := bfir.CompileSource(source)
	if err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
	}
	if ir {
		fmt.Fprint(stdOut, bfir.Format(ops))
	}

	// Compiles through the runtime so that native code generation and mapping are checked too.
	rt := bfjit.NewRuntime()
	program, err := rt.CompileProgram(source)
	if err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
	}
	if err = program.Close(); err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
	}
	exit(0)
}

func doRun(args []string, stdIn io.Reader, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var interp bool
	flags.BoolVar(&interp, "interp", false, "force interpreter")

	var tape string
	flags.StringVar(&tape, "tape", humanize.IBytes(bfir.DefaultTapeSize),
		"number of cells on the tape, such as 30000, 64KiB or 1MB")

	if err := flags.Parse(args); err != nil {
		exit(1)
	}

	if help {
		printRunUsage(stdErr, flags)
		exit(0)
	}

	tapeSize, err := parseTapeSize(tape)
	if err != nil {
		fmt.Fprintf(stdErr, "error: invalid tape size: %v\n", err)
		exit(1)
	}

	source := readSource(flags, stdErr, exit, printRunUsage)

	var c *bfjit.RuntimeConfig
	if interp {
		c = bfjit.NewRuntimeConfigInterpreter()
	} else {
		c = bfjit.NewRuntimeConfig()
	}
	rt := bfjit.NewRuntimeWithConfig(c.WithTapeSize(tapeSize))

	program, err := rt.CompileProgram(source)
	if err != nil {
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
	}
	defer program.Close()

	in, out, flush := bufferIO(stdIn, stdOut)
	err = program.Run(in, out)
	if flushErr := flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		if errors.Is(err, bfjit.ErrTapeOutOfBounds) {
			err = fmt.Errorf("%w (tape size %s)", err, humanize.IBytes(uint64(tapeSize)))
		}
		fmt.Fprintf(stdErr, "error: %v\n", err)
		exit(1)
	}
	exit(0)
}

// parseTapeSize parses human-readable sizes like "64KiB" or "30000".
func parseTapeSize(s string) (int, error) {
	size, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if size == 0 || size > bfir.MaxTapeSize {
		return 0, fmt.Errorf("%s is out of range, the maximum is %s", s, humanize.IBytes(bfir.MaxTapeSize))
	}
	return int(size), nil
}

func readSource(flags *flag.FlagSet, stdErr io.Writer, exit func(code int), printUsage func(io.Writer, *flag.FlagSet)) []byte {
	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to program file")
		printUsage(stdErr, flags)
		exit(1)
	}
	source, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error: reading program: %v\n", err)
		exit(1)
	}
	return source
}

// bufferIO buffers the program's I/O unless stdOut is a terminal, where each byte is shown as it is written.
// Buffered output is flushed before every read which may block, so prompts are visible before input is awaited.
func bufferIO(stdIn io.Reader, stdOut io.Writer) (io.Reader, io.Writer, func() error) {
	if f, ok := stdOut.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return bufio.NewReader(stdIn), stdOut, func() error { return nil }
	}
	w := bufio.NewWriter(stdOut)
	return bufio.NewReader(&flushingReader{r: stdIn, w: w}), w, w.Flush
}

// flushingReader flushes w before reading from r.
type flushingReader struct {
	r io.Reader
	w *bufio.Writer
}

func (f *flushingReader) Read(p []byte) (int, error) {
	if err := f.w.Flush(); err != nil {
		return 0, err
	}
	return f.r.Read(p)
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "bfjit CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bfjit <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  compile\tCompiles a program and optionally prints its operations")
	fmt.Fprintln(stdErr, "  run\t\tRuns a program with stdin and stdout")
}

func printCompileUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "bfjit CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bfjit compile <options> <path to program file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printRunUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "bfjit CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bfjit run <options> <path to program file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
