package dal

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse reads DAL query text into an AST. The grammar is the one Render
// emits:
//
//	SELECT col [, col...] FROM Type
//	  [WHERE path op literal [AND ...]]
//	  [GROUP BY path [, path...]]
//	  [ORDER BY path [ASC|DESC] [, ...]]
//	  [LIMIT n] [OFFSET n]
//
// where col is "path", "FUNC(path)", either optionally followed by
// "AS alias". Keywords are case-insensitive; paths and type names are not.
func Parse(text string) (*Query, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	return q, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokComma
	tokLParen
	tokRParen
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '\'':
			s, next, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, s, i})
			i = next
		case c == '=' || c == '<' || c == '>':
			op := string(c)
			if i+1 < len(input) {
				two := input[i : i+2]
				if two == "<>" || two == ">=" || two == "<=" {
					op = two
				}
			}
			toks = append(toks, token{tokOp, op, i})
			i += len(op)
		case unicode.IsDigit(c) || c == '-':
			start := i
			i++
			for i < len(input) && (unicode.IsDigit(rune(input[i])) || input[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, input[start:i], start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(input) && isPathRune(rune(input[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, input[start:i], start})
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	toks = append(toks, token{tokEOF, "", len(input)})
	return toks, nil
}

func isPathRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

// lexString reads a single-quoted literal with '' as the escape for a quote.
func lexString(input string, start int) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(input) {
		if input[i] == '\'' {
			if i+1 < len(input) && input[i+1] == '\'' {
				sb.WriteByte('\'')
				i += 2
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteByte(input[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated string literal at offset %d", start)
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// keyword consumes the next token if it is the given case-insensitive
// keyword.
func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.keyword(kw) {
		return fmt.Errorf("expected %s at offset %d, got %q", kw, p.peek().pos, p.peek().text)
	}
	return nil
}

func (p *parser) expectIdent() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", fmt.Errorf("expected identifier at offset %d, got %q", t.pos, t.text)
	}
	return t.text, nil
}

func (p *parser) parseQuery() (*Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	q := &Query{}
	for {
		sel, err := p.parseSelectExpr()
		if err != nil {
			return nil, err
		}
		q.Select = append(q.Select, sel)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	q.From = from

	if p.keyword("WHERE") {
		for {
			r, err := p.parseRestriction()
			if err != nil {
				return nil, err
			}
			q.Where = append(q.Where, r)
			if !p.keyword("AND") {
				break
			}
		}
	}

	if p.keyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			path, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			q.GroupBy = append(q.GroupBy, path)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}

	if p.keyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			path, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ord := Ordering{Path: path}
			if p.keyword("DESC") {
				ord.Desc = true
			} else {
				p.keyword("ASC")
			}
			q.OrderBy = append(q.OrderBy, ord)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}

	if p.keyword("LIMIT") {
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		q.Limit = &n
	}
	if p.keyword("OFFSET") {
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		q.Offset = &n
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input %q at offset %d", t.text, t.pos)
	}
	return q, nil
}

func (p *parser) parseSelectExpr() (SelectExpr, error) {
	ident, err := p.expectIdent()
	if err != nil {
		return SelectExpr{}, err
	}

	sel := SelectExpr{Path: ident}
	if fn, ok := ParseAggregateFunc(strings.ToUpper(ident)); ok && p.peek().kind == tokLParen {
		p.next()
		path, err := p.expectIdent()
		if err != nil {
			return SelectExpr{}, err
		}
		if t := p.next(); t.kind != tokRParen {
			return SelectExpr{}, fmt.Errorf("expected ) at offset %d, got %q", t.pos, t.text)
		}
		sel = SelectExpr{Path: path, Func: fn}
	}

	if p.keyword("AS") {
		alias, err := p.expectIdent()
		if err != nil {
			return SelectExpr{}, err
		}
		sel.Alias = alias
	}
	return sel, nil
}

func (p *parser) parseRestriction() (Restriction, error) {
	path, err := p.expectIdent()
	if err != nil {
		return Restriction{}, err
	}

	var op Operator
	if t := p.peek(); t.kind == tokOp {
		p.next()
		op = Operator(t.text)
	} else if p.keyword("LIKE") {
		op = OpLike
	} else {
		return Restriction{}, fmt.Errorf("expected operator at offset %d, got %q", t.pos, t.text)
	}

	val, err := p.parseLiteral()
	if err != nil {
		return Restriction{}, err
	}
	return Restriction{Path: path, Op: op, Value: val}, nil
}

func (p *parser) parseLiteral() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at offset %d", t.text, t.pos)
		}
		return n, nil
	case tokIdent:
		switch strings.ToUpper(t.text) {
		case "NULL":
			return nil, nil
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
	}
	return nil, fmt.Errorf("expected literal at offset %d, got %q", t.pos, t.text)
}

func (p *parser) parseInt() (int, error) {
	t := p.next()
	if t.kind != tokNumber {
		return 0, fmt.Errorf("expected number at offset %d, got %q", t.pos, t.text)
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q at offset %d", t.text, t.pos)
	}
	return n, nil
}
