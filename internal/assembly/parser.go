package assembly

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// validIdentifier matches procedure names and import aliases.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type token struct {
	Text string
	Line int
}

// tokenize splits source into whitespace-separated tokens.
// Everything after '#' on a line is a comment.
func tokenize(src string) []token {
	var tokens []token
	for i, line := range strings.Split(src, "\n") {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		for _, f := range strings.Fields(line) {
			tokens = append(tokens, token{Text: f, Line: i + 1})
		}
	}
	return tokens
}

// node is one element of a parsed body.
type node interface {
	line() int
}

type instrNode struct {
	tok token
}

func (n *instrNode) line() int { return n.tok.Line }

type ifNode struct {
	at      int
	onTrue  []node
	onFalse []node
}

func (n *ifNode) line() int { return n.at }

type whileNode struct {
	at   int
	body []node
}

func (n *whileNode) line() int { return n.at }

type repeatNode struct {
	at    int
	count int
	body  []node
}

func (n *repeatNode) line() int { return n.at }

type invokeKind uint8

const (
	invokeExec invokeKind = iota
	invokeCall
	invokeSyscall
)

type invokeNode struct {
	at     int
	kind   invokeKind
	target string
}

func (n *invokeNode) line() int { return n.at }

type debugNode struct {
	at int
}

func (n *debugNode) line() int { return n.at }

type importDecl struct {
	alias string
	path  string
	line  int
}

type procDecl struct {
	name     string
	locals   int
	exported bool
	body     []node
	line     int
}

// moduleAST is a parsed source unit: a program, a library or a kernel.
type moduleAST struct {
	imports []importDecl
	procs   []procDecl
	main    []node
	hasMain bool
	mainAt  int
}

// maxRepeat bounds repeat.n, which is unrolled at compile time.
const maxRepeat = 1 << 16

type parser struct {
	tokens []token
	pos    int
}

func parse(src string) (*moduleAST, error) {
	p := &parser{tokens: tokenize(src)}
	return p.parseModule()
}

func (p *parser) eof() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) parseModule() (*moduleAST, error) {
	m := &moduleAST{}
	seen := make(map[string]int)

	for !p.eof() {
		tok := p.next()
		switch {
		case strings.HasPrefix(tok.Text, "use."):
			path := strings.TrimPrefix(tok.Text, "use.")
			alias := path
			if idx := strings.LastIndex(path, "::"); idx >= 0 {
				alias = path[idx+2:]
			}
			if !validIdentifier.MatchString(alias) {
				return nil, newError(ErrCodeUndefinedModule, tok.Line, "invalid module path %q", path)
			}
			m.imports = append(m.imports, importDecl{alias: alias, path: path, line: tok.Line})

		case strings.HasPrefix(tok.Text, "proc."), strings.HasPrefix(tok.Text, "export."):
			if m.hasMain {
				return nil, newError(ErrCodeUnexpectedToken, tok.Line, "procedure declared after begin block")
			}
			decl, err := p.parseProcHeader(tok)
			if err != nil {
				return nil, err
			}
			if first, ok := seen[decl.name]; ok {
				return nil, newError(ErrCodeDuplicateProcedure, tok.Line,
					"duplicate procedure %q (first declared at line %d)", decl.name, first)
			}
			seen[decl.name] = tok.Line

			body, _, err := p.parseBody(tok.Line, "end")
			if err != nil {
				return nil, err
			}
			decl.body = body
			m.procs = append(m.procs, decl)

		case tok.Text == "begin":
			if m.hasMain {
				return nil, newError(ErrCodeUnexpectedToken, tok.Line, "duplicate begin block")
			}
			body, _, err := p.parseBody(tok.Line, "end")
			if err != nil {
				return nil, err
			}
			m.main = body
			m.hasMain = true
			m.mainAt = tok.Line

		default:
			return nil, newError(ErrCodeUnexpectedToken, tok.Line, "unexpected token %q", tok.Text)
		}
	}
	return m, nil
}

func (p *parser) parseProcHeader(tok token) (procDecl, error) {
	decl := procDecl{line: tok.Line, exported: strings.HasPrefix(tok.Text, "export.")}
	parts := strings.Split(tok.Text, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return decl, newError(ErrCodeInvalidProcedureName, tok.Line, "malformed procedure declaration %q", tok.Text)
	}
	decl.name = parts[1]
	if !validIdentifier.MatchString(decl.name) {
		return decl, newError(ErrCodeInvalidProcedureName, tok.Line, "invalid procedure name %q", decl.name)
	}
	if len(parts) == 3 {
		n, err := parseBounded(parts[2], 0, 1<<16)
		if err != nil {
			return decl, newError(ErrCodeInvalidParameter, tok.Line, "invalid number of locals in %q: %v", tok.Text, err)
		}
		decl.locals = int(n)
	}
	return decl, nil
}

// parseBody reads nodes until one of the terminators. It returns the
// terminator it stopped at.
func (p *parser) parseBody(openedAt int, terminators ...string) ([]node, string, error) {
	var nodes []node
	for {
		if p.eof() {
			return nil, "", newError(ErrCodeMalformedBlock, openedAt, "block opened at line %d is missing end", openedAt)
		}
		tok := p.next()
		for _, term := range terminators {
			if tok.Text == term {
				return nodes, term, nil
			}
		}

		switch {
		case tok.Text == "if.true":
			onTrue, term, err := p.parseBody(tok.Line, "else", "end")
			if err != nil {
				return nil, "", err
			}
			n := &ifNode{at: tok.Line, onTrue: onTrue}
			if term == "else" {
				if n.onFalse, _, err = p.parseBody(tok.Line, "end"); err != nil {
					return nil, "", err
				}
			}
			nodes = append(nodes, n)

		case tok.Text == "while.true":
			body, _, err := p.parseBody(tok.Line, "end")
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, &whileNode{at: tok.Line, body: body})

		case strings.HasPrefix(tok.Text, "repeat."):
			count, err := parseBounded(strings.TrimPrefix(tok.Text, "repeat."), 1, maxRepeat)
			if err != nil {
				return nil, "", newError(ErrCodeInvalidParameter, tok.Line, "invalid repeat count in %q: %v", tok.Text, err)
			}
			body, _, err := p.parseBody(tok.Line, "end")
			if err != nil {
				return nil, "", err
			}
			nodes = append(nodes, &repeatNode{at: tok.Line, count: int(count), body: body})

		case strings.HasPrefix(tok.Text, "exec."):
			nodes = append(nodes, &invokeNode{at: tok.Line, kind: invokeExec, target: strings.TrimPrefix(tok.Text, "exec.")})
		case strings.HasPrefix(tok.Text, "call."):
			nodes = append(nodes, &invokeNode{at: tok.Line, kind: invokeCall, target: strings.TrimPrefix(tok.Text, "call.")})
		case strings.HasPrefix(tok.Text, "syscall."):
			nodes = append(nodes, &invokeNode{at: tok.Line, kind: invokeSyscall, target: strings.TrimPrefix(tok.Text, "syscall.")})

		case tok.Text == "debug.stack":
			nodes = append(nodes, &debugNode{at: tok.Line})

		case tok.Text == "begin", tok.Text == "end", tok.Text == "else",
			strings.HasPrefix(tok.Text, "proc."), strings.HasPrefix(tok.Text, "export."),
			strings.HasPrefix(tok.Text, "use."):
			return nil, "", newError(ErrCodeMalformedBlock, tok.Line,
				"unexpected %q inside block opened at line %d", tok.Text, openedAt)

		default:
			nodes = append(nodes, &instrNode{tok: tok})
		}
	}
}

// parseValue parses a decimal or 0x-prefixed hex literal.
func parseValue(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseBounded(s string, lo, hi uint64) (uint64, error) {
	v, err := parseValue(s)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("value %d not in range [%d, %d]", v, lo, hi)
	}
	return v, nil
}
