// Package condition parses and evaluates attribute value filters such as
//
//	cell_type == 'macrophage' and (n_genes > 200 or tissue in ['lung', 'liver'])
//
// A parsed Expr is validated against an arrow schema and evaluated against a
// record batch, producing a row selection bitset. Comparisons on null values
// never match.
package condition
