package assembly

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/roach88/stackvm/internal/canonical"
)

// ModuleProvider supplies library module sources by path, e.g. "std::math::felt".
type ModuleProvider interface {
	Module(path string) (source string, ok bool)
}

// Assembler compiles source text into programs.
// Assemblers are immutable; the With* methods return modified copies, so a
// configured assembler can be shared between goroutines.
type Assembler struct {
	provider    ModuleProvider
	debug       bool
	kernel      Kernel
	kernelProcs map[string]*procedure
}

// New creates an assembler that resolves imports through provider.
// A nil provider rejects every import.
func New(provider ModuleProvider) *Assembler {
	return &Assembler{provider: provider}
}

// WithDebugMode returns a copy that records assembly-op provenance and
// debug decorators. Debug mode never changes program hashes.
func (a *Assembler) WithDebugMode(debug bool) *Assembler {
	c := *a
	c.debug = debug
	return &c
}

// InDebugMode reports whether debug information is recorded.
func (a *Assembler) InDebugMode() bool {
	return a.debug
}

// WithKernel compiles src as a kernel module and returns a copy that
// attaches it to every program. A kernel may only declare procedures;
// its exported procedures become syscall targets.
func (a *Assembler) WithKernel(src string) (*Assembler, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, err
	}
	if ast.hasMain {
		return nil, newError(ErrCodeInvalidKernel, ast.mainAt, "kernel module must not contain a begin block")
	}

	s := a.newSession()
	procs, err := s.compileProcs(ast, "")
	if err != nil {
		return nil, err
	}

	exports := make(map[string]*procedure)
	var digests []canonical.Digest
	for name, p := range procs {
		if p.exported {
			exports[name] = p
			digests = append(digests, p.body.Hash())
		}
	}
	if len(exports) == 0 {
		return nil, newError(ErrCodeInvalidKernel, 0, "kernel module exports no procedures")
	}

	c := *a
	c.kernel = NewKernel(digests...)
	c.kernelProcs = exports
	return &c, nil
}

// Kernel returns the attached kernel; empty when none was set.
func (a *Assembler) Kernel() Kernel {
	return a.kernel
}

// Compile assembles program source. The source must contain exactly one
// begin ... end block, optionally preceded by imports and procedures.
func (a *Assembler) Compile(src string) (*Program, error) {
	ast, err := parse(src)
	if err != nil {
		return nil, err
	}
	if !ast.hasMain {
		return nil, newError(ErrCodeMissingProgram, 0, "source has no begin block")
	}

	s := a.newSession()
	procs, err := s.compileProcs(ast, "")
	if err != nil {
		return nil, err
	}

	sc, err := s.newScope(ast, "", procs)
	if err != nil {
		return nil, err
	}
	root, err := sc.compileBody(ast.main)
	if err != nil {
		return nil, err
	}

	program := NewProgram(root, a.kernel)
	slog.Debug("program compiled",
		"program_hash", program.Hash().Short(),
		"blocks", program.NumBlocks(),
		"debug", a.debug,
	)
	return program, nil
}

type procedure struct {
	name     string
	locals   int
	exported bool
	body     CodeBlock
}

// session holds the library modules loaded during one compilation.
type session struct {
	asm     *Assembler
	modules map[string]map[string]*procedure
	loading []string
}

func (a *Assembler) newSession() *session {
	return &session{asm: a, modules: make(map[string]map[string]*procedure)}
}

// load compiles the library at path once per session.
func (s *session) load(path string, line int) (map[string]*procedure, error) {
	if procs, ok := s.modules[path]; ok {
		return procs, nil
	}
	for _, p := range s.loading {
		if p == path {
			chain := append(append([]string{}, s.loading...), path)
			return nil, newError(ErrCodeCircularImport, line, "circular import: %s", strings.Join(chain, " -> "))
		}
	}

	var src string
	var ok bool
	if s.asm.provider != nil {
		src, ok = s.asm.provider.Module(path)
	}
	if !ok {
		return nil, newError(ErrCodeUndefinedModule, line, "undefined module %q", path)
	}

	ast, err := parse(src)
	if err != nil {
		return nil, inModule(err, path)
	}
	if ast.hasMain {
		return nil, inModule(newError(ErrCodeUnexpectedToken, ast.mainAt, "library module must not contain a begin block"), path)
	}

	s.loading = append(s.loading, path)
	procs, err := s.compileProcs(ast, path)
	s.loading = s.loading[:len(s.loading)-1]
	if err != nil {
		return nil, err
	}
	s.modules[path] = procs
	return procs, nil
}

// compileProcs compiles every procedure of a module in declaration order.
// A procedure may only reference procedures declared before it.
func (s *session) compileProcs(ast *moduleAST, path string) (map[string]*procedure, error) {
	procs := make(map[string]*procedure, len(ast.procs))
	sc, err := s.newScope(ast, path, procs)
	if err != nil {
		return nil, err
	}
	for _, decl := range ast.procs {
		sc.locals = decl.locals
		body, err := sc.compileProc(decl)
		if err != nil {
			return nil, err
		}
		procs[decl.name] = &procedure{
			name:     decl.name,
			locals:   decl.locals,
			exported: decl.exported,
			body:     body,
		}
	}
	return procs, nil
}

// scope resolves names while compiling one module.
type scope struct {
	s       *session
	module  string
	imports map[string]string
	procs   map[string]*procedure
	locals  int
}

func (s *session) newScope(ast *moduleAST, path string, procs map[string]*procedure) (*scope, error) {
	sc := &scope{s: s, module: path, imports: make(map[string]string), procs: procs}
	for _, imp := range ast.imports {
		if prev, ok := sc.imports[imp.alias]; ok && prev != imp.path {
			return nil, inModule(newError(ErrCodeUndefinedModule, imp.line,
				"alias %q already refers to module %q", imp.alias, prev), path)
		}
		if _, err := s.load(imp.path, imp.line); err != nil {
			return nil, inModule(err, path)
		}
		sc.imports[imp.alias] = imp.path
	}
	return sc, nil
}

func (sc *scope) compileProc(decl procDecl) (CodeBlock, error) {
	b := newBuilder(sc.s.asm.debug)
	header := "proc." + decl.name
	if decl.locals > 0 {
		b.addOps(header, decl.line, []Operation{withParam(OpFmpUpdate, int64(decl.locals))})
	}
	if err := sc.emit(b, decl.body); err != nil {
		return nil, err
	}
	if decl.locals > 0 {
		b.addOps(header, decl.line, []Operation{withParam(OpFmpUpdate, -int64(decl.locals))})
	}
	return b.build(), nil
}

func (sc *scope) compileBody(nodes []node) (CodeBlock, error) {
	b := newBuilder(sc.s.asm.debug)
	if err := sc.emit(b, nodes); err != nil {
		return nil, err
	}
	return b.build(), nil
}

func (sc *scope) emit(b *blockBuilder, nodes []node) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case *instrNode:
			ops, err := expandInstruction(n.tok, sc.locals)
			if err != nil {
				return inModule(err, sc.module)
			}
			b.addOps(n.tok.Text, n.tok.Line, ops)

		case *debugNode:
			b.addDecorator(Decorator{Kind: DecoratorDebugStack, Line: n.at})

		case *ifNode:
			onTrue, err := sc.compileBody(n.onTrue)
			if err != nil {
				return err
			}
			onFalse, err := sc.compileBody(n.onFalse)
			if err != nil {
				return err
			}
			b.addBlock(newSplit(onTrue, onFalse))

		case *whileNode:
			body, err := sc.compileBody(n.body)
			if err != nil {
				return err
			}
			b.addBlock(newLoop(body))

		case *repeatNode:
			for i := 0; i < n.count; i++ {
				if err := sc.emit(b, n.body); err != nil {
					return err
				}
			}

		case *invokeNode:
			blk, err := sc.invoke(n)
			if err != nil {
				return inModule(err, sc.module)
			}
			b.addBlock(blk)
		}
	}
	return nil
}

func (sc *scope) invoke(n *invokeNode) (CodeBlock, error) {
	if n.kind == invokeSyscall {
		p, ok := sc.s.asm.kernelProcs[n.target]
		if !ok {
			return nil, newError(ErrCodeUndefinedKernelProcedure, n.at,
				"syscall target %q is not an exported kernel procedure", n.target)
		}
		return newCall(n.target, p.body, true), nil
	}

	p, err := sc.resolve(n.target, n.at)
	if err != nil {
		return nil, err
	}
	if n.kind == invokeCall {
		return newCall(n.target, p.body, false), nil
	}
	return p.body, nil
}

// resolve finds a local procedure or an exported procedure of an imported
// module ("alias::name").
func (sc *scope) resolve(target string, line int) (*procedure, error) {
	idx := strings.LastIndex(target, "::")
	if idx < 0 {
		p, ok := sc.procs[target]
		if !ok {
			return nil, newError(ErrCodeUndefinedProcedure, line, "undefined procedure %q", target)
		}
		return p, nil
	}

	alias, name := target[:idx], target[idx+2:]
	path, ok := sc.imports[alias]
	if !ok {
		return nil, newError(ErrCodeUndefinedModule, line, "undefined module %q in %q", alias, target)
	}
	procs, err := sc.s.load(path, line)
	if err != nil {
		return nil, err
	}
	p, ok := procs[name]
	if !ok || !p.exported {
		return nil, newError(ErrCodeUndefinedProcedure, line, "undefined procedure %q in module %q", name, path)
	}
	return p, nil
}

// inModule annotates an assembly error with the module it came from.
func inModule(err error, path string) error {
	var ae *AssemblyError
	if path != "" && errors.As(err, &ae) && ae.Module == "" {
		ae.Module = path
	}
	return err
}

// blockBuilder accumulates operations into spans and spans plus control
// blocks into a body.
type blockBuilder struct {
	debug      bool
	blocks     []CodeBlock
	ops        []Operation
	asmOps     []*AsmOp
	decorators map[int][]Decorator

	// last is the most recent span this builder created. Spans of inlined
	// procedures are shared and must not be modified.
	last *Span
}

func newBuilder(debug bool) *blockBuilder {
	return &blockBuilder{debug: debug}
}

func (b *blockBuilder) addOps(instr string, line int, ops []Operation) {
	for i, o := range ops {
		b.ops = append(b.ops, o)
		if b.debug {
			b.asmOps = append(b.asmOps, &AsmOp{
				Instruction: instr,
				Line:        line,
				NumCycles:   len(ops),
				CycleIdx:    i + 1,
			})
		}
	}
}

// addDecorator attaches d to the next operation. No-op outside debug mode.
func (b *blockBuilder) addDecorator(d Decorator) {
	if !b.debug {
		return
	}
	if b.decorators == nil {
		b.decorators = make(map[int][]Decorator)
	}
	b.decorators[len(b.ops)] = append(b.decorators[len(b.ops)], d)
}

func (b *blockBuilder) flush() {
	if len(b.ops) == 0 {
		b.attachTrailing()
		return
	}
	b.last = newSpan(b.ops, b.asmOps, b.decorators)
	b.blocks = append(b.blocks, b.last)
	b.ops, b.asmOps, b.decorators = nil, nil, nil
}

// attachTrailing moves decorators that follow the last operation of a span
// onto the end of that span, provided no control block came after it.
func (b *blockBuilder) attachTrailing() {
	if len(b.decorators) == 0 || len(b.blocks) == 0 {
		return
	}
	span := b.last
	if span == nil || b.blocks[len(b.blocks)-1] != CodeBlock(span) {
		return
	}
	if span.Decorators == nil {
		span.Decorators = make(map[int][]Decorator)
	}
	end := len(span.Ops)
	span.Decorators[end] = append(span.Decorators[end], b.decorators[0]...)
	b.decorators = nil
}

func (b *blockBuilder) addBlock(blk CodeBlock) {
	b.flush()
	b.blocks = append(b.blocks, blk)
}

func (b *blockBuilder) build() CodeBlock {
	b.flush()
	switch len(b.blocks) {
	case 0:
		var asmOps []*AsmOp
		if b.debug {
			asmOps = []*AsmOp{}
		}
		return newSpan(nil, asmOps, b.decorators)
	case 1:
		return b.blocks[0]
	default:
		return newJoin(b.blocks)
	}
}
