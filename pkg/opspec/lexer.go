package opspec

import "github.com/alecthomas/participle/v2/lexer"

// opLexer tokenizes avrdude-style operations such as "lfuse:w:0xE2:m".
var opLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Number", Pattern: `0[xX][0-9A-Fa-f]+|0[bB][01]+|\$[0-9A-Fa-f]+|[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Colon", Pattern: `:`},
})
