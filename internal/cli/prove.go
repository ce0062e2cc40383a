package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stackvm/internal/prover"
)

// ProveOptions holds flags for the prove command.
type ProveOptions struct {
	*RootOptions
	ProgramFlags
	Public    string // public inputs; defaults to the stack inputs
	Tamper    bool   // alter the first output before verifying
	Queries   int
	Grinding  int
	hasPublic bool
}

// ProveResult is the output of the prove command.
type ProveResult struct {
	ProgramHash string   `json:"program_hash"`
	Outputs     []uint64 `json:"outputs"`
	TraceLength int      `json:"trace_length"`
	ProofSize   int      `json:"proof_size"`
	Tampered    bool     `json:"tampered"`
	Verified    bool     `json:"verified"`
	Error       string   `json:"error,omitempty"` // verification failure
}

// NewProveCommand creates the prove command.
func NewProveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProveOptions{RootOptions: rootOpts}
	defaults := prover.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "prove <file>",
		Short: "Prove an execution and verify the proof",
		Long: `Execute a program, generate a proof of the execution, and verify the
proof against the program hash, the public inputs and the outputs.

Public inputs default to the stack inputs. --tamper alters the first
output before verification, which a sound verifier must reject.

Exit codes:
  0 - Proof verified
  1 - Verification failed or execution failed
  2 - Command error (missing file, compile error, invalid options)

Examples:
  stackvm prove ./prog.masm --stack 9
  stackvm prove ./prog.masm --stack 9 --tamper
  stackvm prove ./prog.masm --queries 8 --grinding 4 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.hasPublic = cmd.Flags().Changed("public")
			return runProve(cmd, opts, args[0])
		},
	}

	opts.ProgramFlags.register(cmd, true)
	cmd.Flags().StringVar(&opts.Public, "public", "", "comma-separated public inputs (defaults to --stack)")
	cmd.Flags().BoolVar(&opts.Tamper, "tamper", false, "alter the first output before verifying")
	cmd.Flags().IntVar(&opts.Queries, "queries", defaults.NumQueries, "number of queried trace rows")
	cmd.Flags().IntVar(&opts.Grinding, "grinding", defaults.GrindingFactor, "proof-of-work bits")

	return cmd
}

func runProve(cmd *cobra.Command, opts *ProveOptions, path string) error {
	f := newFormatter(cmd, opts.RootOptions)

	test, err := opts.buildTest(path)
	if err != nil {
		return err
	}
	public := test.Inputs.Stack
	if opts.hasPublic {
		public, err = parseValues(opts.Public)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --public", err)
		}
	}
	proofOpts := prover.Options{NumQueries: opts.Queries, GrindingFactor: opts.Grinding}
	if err := proofOpts.Validate(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid proof options", err)
	}

	program, err := test.Compile()
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeCompile, "compilation failed", err)
	}
	outputs, proof, err := prover.Prove(program, test.Inputs, proofOpts)
	if err != nil {
		code, exit := codeFor(err)
		return f.Fail(exit, code, "proof generation failed", err)
	}
	f.VerboseLog("proved %d rows with %d queries", proof.TraceLength, proofOpts.NumQueries)

	if opts.Tamper {
		outputs.TamperFirst()
	}
	result := ProveResult{
		ProgramHash: program.Hash().Hex(),
		Outputs:     outputs.Stack(),
		TraceLength: proof.TraceLength,
		ProofSize:   proof.Size(),
		Tampered:    opts.Tamper,
		Verified:    true,
	}
	verifyErr := prover.Verify(program.Hash(), public, outputs, proof)
	if verifyErr != nil {
		result.Verified = false
		result.Error = verifyErr.Error()
	}

	if verifyErr == nil {
		return f.Success(result, formatProve(result))
	}
	if f.JSON() {
		if err := f.Error(ErrCodeVerify, verifyErr.Error(), result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(f.Writer, formatProve(result))
	}
	return WrapExitError(ExitFailure, "verification failed", verifyErr)
}

func formatProve(r ProveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Program hash: %s\n", r.ProgramHash)
	fmt.Fprintf(&b, "Outputs: [%s]\n", joinValues(r.Outputs))
	if r.Tampered {
		b.WriteString("Outputs tampered: first element altered\n")
	}
	fmt.Fprintf(&b, "Trace length: %d\n", r.TraceLength)
	fmt.Fprintf(&b, "Proof size: %d bytes\n", r.ProofSize)
	if r.Verified {
		b.WriteString("✓ Proof verified\n")
	} else {
		fmt.Fprintf(&b, "✗ Verification failed: %s\n", r.Error)
	}
	return b.String()
}
