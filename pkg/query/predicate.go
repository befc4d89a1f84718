package query

import (
	"fmt"
	"strings"
)

// MaxResults caps every search.
const MaxResults = 10

// Field is a column of the word table a clause applies to.
type Field string

const (
	FieldText   Field = "text"
	FieldPinyin Field = "pinyin"
)

// Op is the comparison a clause performs.
type Op int

const (
	// OpLike matches Pattern against the whole field, with Wildcard allowed.
	OpLike Op = iota
	// OpContains matches when Pattern occurs anywhere in the field.
	OpContains
	// OpLength matches when the field is exactly Length characters long.
	OpLength
)

func (o Op) String() string {
	switch o {
	case OpLike:
		return "LIKE"
	case OpContains:
		return "CONTAINS"
	case OpLength:
		return "LENGTH"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Clause is one condition of a Predicate. Pattern holds already validated
// and translated text; it is never spliced into SQL.
type Clause struct {
	Op      Op
	Field   Field
	Pattern string
	Length  int
}

func (c Clause) String() string {
	if c.Op == OpLength {
		return fmt.Sprintf("LENGTH(%s) = %d", c.Field, c.Length)
	}
	return fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Pattern)
}

// Predicate is a conjunction of clauses with a result limit.
type Predicate struct {
	Clauses []Clause
	Limit   int
}

// String renders the predicate in a canonical, human readable form. Equal
// predicates render equally, so the result doubles as a cache key.
func (p Predicate) String() string {
	parts := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s LIMIT %d", strings.Join(parts, " AND "), p.Limit)
}

// Find returns the first clause with the given op and field.
func (p Predicate) Find(op Op, field Field) (Clause, bool) {
	for _, c := range p.Clauses {
		if c.Op == op && c.Field == field {
			return c, true
		}
	}
	return Clause{}, false
}
