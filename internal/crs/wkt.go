package crs

import (
	"errors"
	"fmt"
	"strings"
)

// node is one KEYWORD[...] element of a WKT tree. Quoted strings and bare
// tokens (numbers, enumerations) land in values, nested elements in children.
type node struct {
	keyword  string
	values   []string
	children []*node
}

type wktParser struct {
	s   string
	pos int
}

func parseNode(s string) (*node, error) {
	p := &wktParser{s: s}
	n, err := p.element()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("crs: trailing data at offset %d", p.pos)
	}
	return n, nil
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *wktParser) ident() string {
	start := p.pos
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		if c == '_' || c == '.' || c == '-' || c == '+' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			p.pos++
			continue
		}
		break
	}
	return p.s[start:p.pos]
}

func (p *wktParser) element() (*node, error) {
	p.skipSpace()
	kw := p.ident()
	if kw == "" {
		return nil, fmt.Errorf("crs: expected keyword at offset %d", p.pos)
	}
	p.skipSpace()
	if p.pos >= len(p.s) || (p.s[p.pos] != '[' && p.s[p.pos] != '(') {
		return nil, fmt.Errorf("crs: expected '[' after %s", kw)
	}
	closer := byte(']')
	if p.s[p.pos] == '(' {
		closer = ')'
	}
	p.pos++
	n := &node{keyword: strings.ToUpper(kw)}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, errors.New("crs: unexpected end of wkt")
		}
		switch c := p.s[p.pos]; {
		case c == closer:
			p.pos++
			return n, nil
		case c == ',':
			p.pos++
		case c == '"':
			v, err := p.quoted()
			if err != nil {
				return nil, err
			}
			n.values = append(n.values, v)
		default:
			start := p.pos
			tok := p.ident()
			if tok == "" {
				return nil, fmt.Errorf("crs: unexpected %q at offset %d", c, p.pos)
			}
			p.skipSpace()
			if p.pos < len(p.s) && (p.s[p.pos] == '[' || p.s[p.pos] == '(') {
				p.pos = start
				ch, err := p.element()
				if err != nil {
					return nil, err
				}
				n.children = append(n.children, ch)
				continue
			}
			n.values = append(n.values, tok)
		}
	}
}

// quoted reads a "..." string; a doubled quote is an escaped quote.
func (p *wktParser) quoted() (string, error) {
	p.pos++
	var b strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		p.pos++
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		if p.pos < len(p.s) && p.s[p.pos] == '"' {
			b.WriteByte('"')
			p.pos++
			continue
		}
		return b.String(), nil
	}
	return "", errors.New("crs: unterminated string")
}
