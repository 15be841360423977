// Package svf parses Serial Vector Format files and plays them on a TAP
// controller.
package svf

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes SVF. Hex vectors keep their parentheses and may span lines.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `(!|//)[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Hex", Pattern: `\([\s0-9A-Fa-f]*\)`},
	{Name: "Number", Pattern: `[0-9]+(\.[0-9]*)?([Ee][+-]?[0-9]+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Semicolon", Pattern: `;`},
})

// Parser parses SVF input.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser builds an SVF parser.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(Lexer),
		participle.Elide("Comment", "Whitespace"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("svf: build parser: %w", err)
	}
	return &Parser{parser: parser}, nil
}

// Parse parses SVF from a reader.
func (p *Parser) Parse(name string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("svf: parse: %w", err)
	}
	return f, nil
}

// ParseString parses SVF from a string.
func (p *Parser) ParseString(input string) (*File, error) {
	f, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("svf: parse: %w", err)
	}
	return f, nil
}

// ParseFile parses an SVF file from disk.
func (p *Parser) ParseFile(filename string) (*File, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("svf: open: %w", err)
	}
	defer file.Close()
	return p.Parse(filename, file)
}
