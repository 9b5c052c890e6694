package rpmutils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/open-edge-platform/os-package-fetcher/internal/ospackage"
)

// richNode is a boolean dependency such as "(pam or linux-pam)": either a
// single relation (op == "") or an operator over sub-expressions.
type richNode struct {
	op   string
	dep  ospackage.Dependency
	args []*richNode
}

var richOps = map[string]bool{
	"and": true, "or": true, "if": true, "else": true,
	"unless": true, "with": true, "without": true,
}

var richCmp = map[string]bool{"=": true, "<": true, "<=": true, ">": true, ">=": true}

// tokenizeRich splits a boolean dependency into parentheses and words.
// Parentheses glued to a name, as in "perl(Foo::Bar)", stay in the name.
func tokenizeRich(s string) []string {
	var toks []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' && cur.Len() > 0:
			depth++
			cur.WriteRune(r)
		case r == ')' && depth > 0:
			depth--
			cur.WriteRune(r)
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case unicode.IsSpace(r) && depth == 0:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type richParser struct {
	toks []string
	pos  int
}

func (p *richParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *richParser) next() string {
	tok := p.peek()
	if tok != "" {
		p.pos++
	}
	return tok
}

// parseRich parses one parenthesized boolean dependency.
func parseRich(expr string) (*richNode, error) {
	p := &richParser{toks: tokenizeRich(expr)}
	node, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok != "" {
		return nil, fmt.Errorf("unexpected %q after expression", tok)
	}
	return node, nil
}

func (p *richParser) expr() (*richNode, error) {
	if tok := p.next(); tok != "(" {
		return nil, fmt.Errorf("expected \"(\", got %q", tok)
	}
	first, err := p.term()
	if err != nil {
		return nil, err
	}
	node := &richNode{args: []*richNode{first}}
	for {
		tok := p.next()
		switch {
		case tok == ")":
			if node.op == "" {
				return first, nil
			}
			return node, nil
		case tok == "":
			return nil, errors.New("unterminated expression")
		case !richOps[tok]:
			return nil, fmt.Errorf("unexpected %q", tok)
		case node.op == "":
			node.op = tok
		case tok == "else" && (node.op == "if" || node.op == "unless") && len(node.args) == 2:
			node.op += "-else"
		case tok == node.op && (tok == "and" || tok == "or" || tok == "with"):
		default:
			return nil, fmt.Errorf("%q and %q need parentheses", node.op, tok)
		}
		arg, err := p.term()
		if err != nil {
			return nil, err
		}
		node.args = append(node.args, arg)
	}
}

func (p *richParser) term() (*richNode, error) {
	tok := p.peek()
	switch {
	case tok == "(":
		return p.expr()
	case tok == "" || tok == ")" || richOps[tok] || richCmp[tok]:
		return nil, fmt.Errorf("expected a name, got %q", tok)
	}
	dep := ospackage.Dependency{Name: p.next()}
	if richCmp[p.peek()] {
		dep.Op = p.next()
		ver := p.next()
		if ver == "" || ver == "(" || ver == ")" || richOps[ver] {
			return nil, fmt.Errorf("%s %s: missing version", dep.Name, dep.Op)
		}
		dep.Version = ver
	}
	return &richNode{dep: dep}, nil
}

// requireGroups flattens n into OR-groups. Conditional forms (if, unless)
// cannot be expressed and are left out; with/without keep their first
// operand. complete is false when anything was left out.
func (n *richNode) requireGroups() (groups [][]ospackage.Dependency, complete bool) {
	switch n.op {
	case "":
		return [][]ospackage.Dependency{{n.dep}}, true
	case "and":
		complete = true
		for _, a := range n.args {
			g, ok := a.requireGroups()
			groups = append(groups, g...)
			complete = complete && ok
		}
		return groups, complete
	case "or":
		var alts []ospackage.Dependency
		for _, a := range n.args {
			g, ok := a.requireGroups()
			if !ok || len(g) != 1 {
				return nil, false
			}
			alts = append(alts, g[0]...)
		}
		return [][]ospackage.Dependency{alts}, true
	case "with", "without":
		groups, _ = n.args[0].requireGroups()
		return groups, false
	default:
		return nil, false
	}
}
