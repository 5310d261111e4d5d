package opspec

// operation is the parse tree of one -U argument:
//
//	memory ":" op [ ":" value [ ":" format ] ]
type operation struct {
	Memory string  `@Ident`
	Op     string  `Colon @Ident`
	Value  *string `( Colon @Number`
	Format *string `  ( Colon @Ident )? )?`
}
