// Command omjit is the host-facing CLI described in spec.md §6: it
// reads a source file, parses it, lowers it to a flow graph, and runs
// the entry block through internal/runtime's lazy-compiling Environment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/michaelmelanson/omjit/internal/config"
	"github.com/michaelmelanson/omjit/internal/disasm"
	"github.com/michaelmelanson/omjit/internal/ir"
	"github.com/michaelmelanson/omjit/internal/logging"
	"github.com/michaelmelanson/omjit/internal/parser"
	"github.com/michaelmelanson/omjit/internal/runtime"
	"github.com/michaelmelanson/omjit/internal/sysfunc"
)

func main() {
	cmd := &cli.Command{
		Name:      "omjit",
		Usage:     "compile and run a small JS-like script with a lazy block-at-a-time JIT",
		ArgsUsage: "<source-file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dump-flow-graph", Usage: "print the lowered flow graph before running"},
			&cli.BoolFlag{Name: "disassemble", Usage: "print disassembled machine code for each compiled block"},
			&cli.StringFlag{Name: "config", Usage: "path to a .omjitrc.yaml", Value: ".omjitrc.yaml"},
			&cli.StringFlag{Name: "log-scopes", Usage: "comma-separated logging scopes: flowgraph,codegen,runtime,gdbjit,all"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "omjit:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("usage: omjit [flags] <source-file>")
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dumpFlowGraph := cfg.DumpFlowGraph
	if cmd.IsSet("dump-flow-graph") {
		dumpFlowGraph = cmd.Bool("dump-flow-graph")
	}
	disassemble := cfg.Disassemble
	if cmd.IsSet("disassemble") {
		disassemble = cmd.Bool("disassemble")
	}
	logScopes := cmd.String("log-scopes")
	if logScopes == "" {
		logScopes = cfg.LogScopes
	}
	log := logging.New(logging.ParseScopes(logScopes))

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	program, err := parser.New(string(src), path).Parse()
	if err != nil {
		return fmt.Errorf("parse error: %w", err)
	}

	root := ir.NewRootScope()
	for _, fn := range sysfunc.Console() {
		root.Insert(fn.Name(), ir.SystemFunctionValue{Descriptor: fn})
	}

	graph, err := ir.FromRoot(program, root)
	if err != nil {
		return fmt.Errorf("compile error: %w", err)
	}

	if dumpFlowGraph {
		dumpGraph(graph, log)
	}

	env := runtime.New(graph)
	defer env.Close()

	if disassemble {
		env.OnCompiled(func(id ir.BasicBlockID, code []byte) {
			printDisassembly(id, code)
		})
	}

	if err := env.Run(); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}

	return nil
}

func printDisassembly(id ir.BasicBlockID, code []byte) {
	lines, err := disasm.Listing(code, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "omjit: disassembling block %d: %v\n", id, err)
		return
	}
	bold := term.IsTerminal(int(os.Stdout.Fd()))
	header := fmt.Sprintf("block %d:", id)
	if bold {
		header = "\x1b[1m" + header + "\x1b[0m"
	}
	fmt.Println(header)
	fmt.Print(disasm.Format(lines))
}

func dumpGraph(graph *ir.FlowGraph, log *logging.Logger) {
	for _, block := range graph.Blocks() {
		log.FlowGraph("block %d (%d instructions)", block.ID, len(block.Body))
		for _, instr := range block.Body {
			fmt.Printf("  %T\n", instr)
		}
		if block.Tail != nil {
			fmt.Printf("  tail: %T\n", block.Tail)
		}
	}
}
