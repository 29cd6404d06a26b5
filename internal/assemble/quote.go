package assemble

import (
	"strings"
)

// Quoting selects the identifier quoting style used when substituting
// identifier parameters inline.
type Quoting int

const (
	// QuoteOff substitutes identifiers without quoting.
	QuoteOff Quoting = iota
	// QuoteANSI uses double quotes, doubling embedded quotes.
	QuoteANSI
	// QuoteMySQL uses backticks, doubling embedded backticks.
	QuoteMySQL
	// QuoteMSSQL uses square brackets, doubling embedded closing brackets.
	QuoteMSSQL
)

var quotingNames = map[Quoting]string{
	QuoteOff:   "off",
	QuoteANSI:  "ansi",
	QuoteMySQL: "mysql",
	QuoteMSSQL: "mssql",
}

func (q Quoting) String() string {
	return quotingNames[q]
}

// QuoteIdentifier renders an identifier per the quoting style. Dotted
// identifiers are split on ".", each segment quoted independently, then
// rejoined, so "schema.tbl" becomes "schema"."tbl" under ANSI quoting.
func (q Quoting) QuoteIdentifier(ident string) string {
	if q == QuoteOff {
		return ident
	}
	segs := strings.Split(ident, ".")
	for i, seg := range segs {
		segs[i] = q.quoteSegment(seg)
	}
	return strings.Join(segs, ".")
}

func (q Quoting) quoteSegment(seg string) string {
	switch q {
	case QuoteANSI:
		return `"` + strings.ReplaceAll(seg, `"`, `""`) + `"`
	case QuoteMySQL:
		return "`" + strings.ReplaceAll(seg, "`", "``") + "`"
	case QuoteMSSQL:
		return "[" + strings.ReplaceAll(seg, "]", "]]") + "]"
	}
	return seg
}
