package octane

import (
	"strconv"
	"strings"
)

// Query is an Octane query expression, e.g. `subtype EQ ^story^;id EQ ^1001^`.
// The zero value matches everything.
type Query struct {
	clauses []string
}

// FieldQuery starts a clause on a field.
type FieldQuery struct {
	name string
}

// Field returns a clause builder for name.
func Field(name string) FieldQuery { return FieldQuery{name: name} }

// Equal matches entities whose field equals value.
func (f FieldQuery) Equal(value string) Query {
	return Query{clauses: []string{f.name + " EQ " + literal(value)}}
}

// EqualInt matches entities whose numeric field equals n.
func (f FieldQuery) EqualInt(n int) Query {
	return Query{clauses: []string{f.name + " EQ " + strconv.Itoa(n)}}
}

// In matches entities whose field is one of values.
func (f FieldQuery) In(values []string) Query {
	lits := make([]string, len(values))
	for i, v := range values {
		lits[i] = literal(v)
	}
	return Query{clauses: []string{f.name + " IN " + strings.Join(lits, ",")}}
}

// And returns the conjunction of q and other.
func (q Query) And(other Query) Query {
	clauses := make([]string, 0, len(q.clauses)+len(other.clauses))
	clauses = append(clauses, q.clauses...)
	clauses = append(clauses, other.clauses...)
	return Query{clauses: clauses}
}

// IsZero reports whether q has no clauses.
func (q Query) IsZero() bool { return len(q.clauses) == 0 }

// String renders the expression without the surrounding double quotes the
// query URL parameter needs.
func (q Query) String() string { return strings.Join(q.clauses, ";") }

func literal(v string) string {
	return "^" + strings.ReplaceAll(v, "^", `\^`) + "^"
}
