package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/roach88/stackvm/internal/assembly"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	ProgramFlags
	Tree bool // print the code block tree
}

// CompileResult is the output of the compile command.
type CompileResult struct {
	ProgramHash string   `json:"program_hash"`
	NumBlocks   int      `json:"num_blocks"`
	KernelProcs []string `json:"kernel_procs"`
	Tree        string   `json:"tree,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a program and print its hash",
		Long: `Compile a program against the standard library and report its hash.

The program hash commits to every operation but not to debug information,
so compiling with --debug yields the same hash.

Examples:
  stackvm compile ./prog.masm
  stackvm compile ./prog.masm --tree
  stackvm compile ./prog.masm --kernel ./kernel.masm --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0])
		},
	}

	opts.ProgramFlags.register(cmd, false)
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print the code block tree")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, path string) error {
	f := newFormatter(cmd, opts.RootOptions)

	test, err := opts.buildTest(path)
	if err != nil {
		return err
	}
	program, err := test.Compile()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, "compilation failed", err)
	}

	result := CompileResult{
		ProgramHash: program.Hash().Hex(),
		NumBlocks:   program.NumBlocks(),
		KernelProcs: []string{},
	}
	for _, d := range program.Kernel().ProcHashes() {
		result.KernelProcs = append(result.KernelProcs, d.Hex())
	}
	if opts.Tree {
		result.Tree = blockTree(program.Root()).String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Program hash: %s\n", result.ProgramHash)
	fmt.Fprintf(&b, "Blocks: %d\n", result.NumBlocks)
	if len(result.KernelProcs) > 0 {
		fmt.Fprintf(&b, "Kernel procedures: %d\n", len(result.KernelProcs))
		for _, h := range result.KernelProcs {
			fmt.Fprintf(&b, "  %s\n", h)
		}
	}
	if result.Tree != "" {
		b.WriteString(result.Tree)
	}
	return f.Success(result, b.String())
}

// blockTree renders a code block tree.
func blockTree(root assembly.CodeBlock) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(blockLabel(root))
	addChildren(tree, root)
	return tree
}

func addChildren(node treeprint.Tree, b assembly.CodeBlock) {
	var children []assembly.CodeBlock
	switch blk := b.(type) {
	case *assembly.Join:
		children = blk.Children
	case *assembly.Split:
		children = []assembly.CodeBlock{blk.OnTrue, blk.OnFalse}
	case *assembly.Loop:
		children = []assembly.CodeBlock{blk.Body}
	case *assembly.Call:
		children = []assembly.CodeBlock{blk.Target}
	}
	for _, c := range children {
		if _, ok := c.(*assembly.Span); ok {
			node.AddNode(blockLabel(c))
			continue
		}
		addChildren(node.AddBranch(blockLabel(c)), c)
	}
}

func blockLabel(b assembly.CodeBlock) string {
	short := b.Hash().Short()
	switch blk := b.(type) {
	case *assembly.Span:
		ops := make([]string, len(blk.Ops))
		for i, o := range blk.Ops {
			ops[i] = o.String()
		}
		return fmt.Sprintf("span %s [%s]", short, strings.Join(ops, " "))
	case *assembly.Join:
		return fmt.Sprintf("join %s", short)
	case *assembly.Split:
		return fmt.Sprintf("split %s", short)
	case *assembly.Loop:
		return fmt.Sprintf("loop %s", short)
	case *assembly.Call:
		if blk.Syscall {
			return fmt.Sprintf("syscall %s %s", blk.Name, short)
		}
		return fmt.Sprintf("call %s %s", blk.Name, short)
	default:
		return short
	}
}
