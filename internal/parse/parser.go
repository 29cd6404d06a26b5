package parse

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParsedTemplate is the fragment sequence produced from a template source
// string. It contains only information encoded in the template syntax; no
// parameter data has been consulted yet.
type ParsedTemplate struct {
	Fragments []Fragment
}

// String returns a textual representation of the fragment sequence for
// debugging and testing purposes.
func (pt *ParsedTemplate) String() string {
	var out bytes.Buffer
	out.WriteString("Template[")
	for i, f := range pt.Fragments {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(f.String())
	}
	out.WriteString("]")
	return out.String()
}

func NewParser() *Parser {
	return &Parser{}
}

type Parser struct {
	input string
	pos   int
	// nextPos is the start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// prevFragEnd is the value of pos when we last finished parsing a marker.
	prevFragEnd int
	// currentFragStart is the value of pos just before we started parsing the
	// marker under pos. We maintain currentFragStart >= prevFragEnd.
	currentFragStart int
	// fragments are the output of the parser, added as they are parsed.
	fragments []Fragment
	// lineNum is the number of the current line of the input.
	lineNum int
	// lineStart is the position of the first char of the current line.
	lineStart int
}

// Parse takes template source and tokenizes it into a fragment sequence.
// Parameter markers and expression tokens inside string literals and plain
// SQL comments are left untouched.
func (p *Parser) Parse(input string) (pt *ParsedTemplate, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot parse template: %s", err)
		}
	}()

	p.init(input)

	for p.pos < len(p.input) {
		if ok, err := p.skipStringLiteral(); err != nil {
			return nil, err
		} else if ok {
			continue
		}

		switch p.char {
		case '-':
			if ex, ok, err := p.parseLineExpr(); err != nil {
				return nil, err
			} else if ok {
				if ex != nil {
					p.add(ex)
				}
				continue
			}
		case '/':
			if ex, ok, err := p.parseBlockExpr(); err != nil {
				return nil, err
			} else if ok {
				if ex != nil {
					p.add(ex)
				}
				continue
			}
		case ':':
			if param, ok, err := p.parseParam(); err != nil {
				return nil, err
			} else if ok {
				p.add(param)
				continue
			}
		}
		p.advanceChar()
	}

	// Add any remaining unparsed input as a text fragment.
	p.currentFragStart = p.pos
	p.add(nil)
	return &ParsedTemplate{Fragments: p.fragments}, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.prevFragEnd = 0
	p.currentFragStart = 0
	p.fragments = []Fragment{}
	p.lineNum = 1
	p.lineStart = 0
	p.advanceChar()
}

// colNum calculates the current column number taking into account line breaks.
func (p *Parser) colNum() int {
	return p.pos - p.lineStart + 1
}

// advanceChar moves the parser to the next character in the input, updating
// the line and column bookkeeping on line breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// errorAt wraps an error with line and column information.
func errorAt(err error, line int, column int, input string) error {
	if strings.ContainsRune(input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", line, column, err)
	}
	return fmt.Errorf("column %d: %w", column, err)
}

// A checkpoint struct for saving parser state to restore later. We only use a
// checkpoint within an attempted parsing of a marker, never across fragments.
type checkpoint struct {
	parser    *Parser
	pos       int
	nextPos   int
	char      rune
	lineNum   int
	lineStart int
}

// save takes a snapshot of the position state of the parser.
func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:    p,
		pos:       p.pos,
		nextPos:   p.nextPos,
		char:      p.char,
		lineNum:   p.lineNum,
		lineStart: p.lineStart,
	}
}

// restore sets the position state of the parser back to the checkpoint.
func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// add pushes the parsed fragment to the fragment list along with the text
// chunk that stretches from the end of the previous fragment to the beginning
// of this one.
func (p *Parser) add(f Fragment) {
	if p.prevFragEnd != p.currentFragStart {
		p.fragments = append(p.fragments,
			&Text{Chunk: p.input[p.prevFragEnd:p.currentFragStart]})
	}

	if f != nil {
		p.fragments = append(p.fragments, f)
	}

	p.prevFragEnd = p.pos
	p.currentFragStart = p.pos
}

// peekString returns true if the input at the current position starts with s.
func (p *Parser) peekString(s string) bool {
	return p.pos+len(s) <= len(p.input) && p.input[p.pos:p.pos+len(s)] == s
}

// skipChar jumps over the current char if it matches c.
func (p *Parser) skipChar(c rune) bool {
	if p.pos < len(p.input) && p.char == c {
		p.advanceChar()
		return true
	}
	return false
}

// skipStringLiteral jumps over single and double quoted sections of input.
// Doubled up quotes are escaped.
func (p *Parser) skipStringLiteral() (bool, error) {
	cp := p.save()

	c := p.char
	if p.skipChar('"') || p.skipChar('\'') {
		// We keep track of whether the next quote has been previously
		// escaped. If not, it might be a closing quote.
		maybeCloser := true
		for p.skipCharFind(c) {
			if maybeCloser && !(p.pos < len(p.input) && p.char == c) {
				return true, nil
			}
			maybeCloser = !maybeCloser
		}

		// Reached end of input without finding the closing quote.
		err := errorAt(fmt.Errorf("missing closing quote in string literal"), cp.lineNum, cp.colNum(), p.input)
		cp.restore()
		return false, err
	}
	return false, nil
}

// skipCharFind advances the parser past the next occurrence of c, returning
// false and leaving the parser unchanged if c does not occur again.
func (p *Parser) skipCharFind(c rune) bool {
	cp := p.save()
	for p.pos < len(p.input) {
		if p.char == c {
			p.advanceChar()
			return true
		}
		p.advanceChar()
	}
	cp.restore()
	return false
}

// colNum calculates the column number of the checkpoint.
func (cp *checkpoint) colNum() int {
	return cp.pos - cp.lineStart + 1
}

// parseLineExpr handles "--" at the current position. A "--~" introduces an
// expression token stretching to the end of the line; a plain "--" comment is
// skipped over as ordinary text. Returns (nil, true, nil) for a plain comment.
func (p *Parser) parseLineExpr() (*Expr, bool, error) {
	if !p.peekString("--") {
		return nil, false, nil
	}
	if p.peekString("--~") {
		line := p.lineNum
		col := p.colNum()
		p.currentFragStart = p.pos
		p.advanceChar()
		p.advanceChar()
		p.advanceChar()
		start := p.pos
		for p.pos < len(p.input) && p.char != '\n' {
			p.advanceChar()
		}
		ex, err := classifyExpr(p.input[start:p.pos])
		if err != nil {
			return nil, false, errorAt(err, line, col, p.input)
		}
		return ex, true, nil
	}
	// Plain comment: consume to end of line without consuming the newline.
	for p.pos < len(p.input) && p.char != '\n' {
		p.advanceChar()
	}
	return nil, true, nil
}

// parseBlockExpr handles "/*" at the current position. A "/*~" introduces an
// expression token terminated by "*/"; a plain block comment is skipped as
// ordinary text. Returns (nil, true, nil) for a plain comment.
func (p *Parser) parseBlockExpr() (*Expr, bool, error) {
	if !p.peekString("/*") {
		return nil, false, nil
	}
	isExpr := p.peekString("/*~")
	line := p.lineNum
	col := p.colNum()
	if isExpr {
		p.currentFragStart = p.pos
		p.advanceChar()
		p.advanceChar()
		p.advanceChar()
	} else {
		p.advanceChar()
		p.advanceChar()
	}
	start := p.pos
	for p.pos < len(p.input) {
		if p.peekString("*/") {
			src := p.input[start:p.pos]
			p.advanceChar()
			p.advanceChar()
			if !isExpr {
				return nil, true, nil
			}
			ex, err := classifyExpr(src)
			if err != nil {
				return nil, false, errorAt(err, line, col, p.input)
			}
			return ex, true, nil
		}
		p.advanceChar()
	}
	return nil, false, errorAt(fmt.Errorf(`missing closing "*/" in comment`), line, col, p.input)
}

// classifyExpr assigns a role to an expression token based on its leading
// keyword. Anything that is not a conditional keyword is a computed value
// expression.
func classifyExpr(src string) (*Expr, error) {
	s := strings.TrimSpace(src)
	word := s
	rest := ""
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		word = s[:i]
		rest = strings.TrimSpace(s[i:])
	}
	switch word {
	case "if":
		if rest == "" {
			return nil, fmt.Errorf(`missing condition after "if"`)
		}
		return &Expr{Role: ExprIf, Src: rest}, nil
	case "elif":
		if rest == "" {
			return nil, fmt.Errorf(`missing condition after "elif"`)
		}
		return &Expr{Role: ExprElif, Src: rest}, nil
	case "else":
		if rest != "" {
			return nil, fmt.Errorf(`unexpected %q after "else"`, rest)
		}
		return &Expr{Role: ExprElse}, nil
	case "end":
		if rest != "" {
			return nil, fmt.Errorf(`unexpected %q after "end"`, rest)
		}
		return &Expr{Role: ExprEnd}, nil
	}
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	return &Expr{Role: ExprValue, Src: s}, nil
}

// kindTokens maps the parameter type tokens accepted in ":<type>:<name>"
// markers to their kinds. Both the short and long spellings are accepted.
var kindTokens = map[string]Kind{
	"v":           Value,
	"value":       Value,
	"v*":          ValueList,
	"value*":      ValueList,
	"t":           Tuple,
	"tuple":       Tuple,
	"t*":          TupleList,
	"tuple*":      TupleList,
	"i":           Identifier,
	"identifier":  Identifier,
	"i*":          IdentifierList,
	"identifier*": IdentifierList,
	"sql":         Raw,
	"sql*":        RawList,
	"snip":        Snippet,
	"snippet":     Snippet,
	"snip*":       SnippetList,
	"snippet*":    SnippetList,
}

// isInitialNameChar returns true if the given char can appear at the start of
// a parameter name or type token.
func isInitialNameChar(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

// isNameChar returns true if the given char can be part of a parameter name.
// Dots form nested lookup paths and dashes are accepted for parity with
// definition file naming.
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' || c == '.'
}

// readName advances the parser over a name and returns it. Returns the empty
// string if the parser is not on an initial name char.
func (p *Parser) readName() string {
	if p.pos >= len(p.input) || !isInitialNameChar(p.char) {
		return ""
	}
	start := p.pos
	for p.pos < len(p.input) && isNameChar(p.char) {
		p.advanceChar()
	}
	return p.input[start:p.pos]
}

// parseParam attempts to parse a parameter marker at the current position.
// Markers take the form ":name" or ":<type>:name". A "::" is passed through
// untouched so PostgreSQL casts survive.
func (p *Parser) parseParam() (*Param, bool, error) {
	cp := p.save()
	line := p.lineNum
	col := p.colNum()

	if !p.skipChar(':') {
		return nil, false, nil
	}
	if p.skipChar(':') {
		// A "::" cast, not a marker.
		return nil, false, nil
	}

	tok := p.readName()
	if tok == "" {
		cp.restore()
		return nil, false, nil
	}

	starCp := p.save()
	star := p.skipChar('*')

	if p.pos < len(p.input) && p.char == ':' && !p.peekString("::") {
		// tok is a parameter type token. A "::" after the name is a cast
		// following a bare marker, as in ":id::bigint".
		if star {
			tok += "*"
		}
		kind, ok := kindTokens[tok]
		if !ok {
			err := errorAt(fmt.Errorf("unknown parameter type %q", tok), line, col, p.input)
			cp.restore()
			return nil, false, err
		}
		p.advanceChar()
		name := p.readName()
		if name == "" {
			err := errorAt(fmt.Errorf("missing parameter name after %q", ":"+tok+":"), line, col, p.input)
			cp.restore()
			return nil, false, err
		}
		p.currentFragStart = cp.pos
		return &Param{Path: name, Kind: kind}, true, nil
	}

	if star {
		// The star was not part of a type token, leave it as text.
		starCp.restore()
	}
	p.currentFragStart = cp.pos
	return &Param{Path: tok, Kind: Value}, true, nil
}
