package query

// Direction of an ordering key.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// NullPlacement pins where null-valued rows land, independent of the
// backend's native default and of the value direction.
type NullPlacement int

const (
	NullsDefault NullPlacement = iota
	NullsFirst
	NullsLast
)

// OrderBy is one user-specified sort key.
type OrderBy struct {
	Column    string
	Direction Direction
	Nulls     NullPlacement
}

// Clauses materializes the key as ORDER BY clauses. A pinned null placement
// prepends an explicit is-null rank so that reversing the value direction
// never moves the null block: booleans order false before true under ASC, so
// NullsLast ranks `(col IS NULL) ASC` and NullsFirst the reverse.
func (o OrderBy) Clauses() []string {
	dir := o.Direction
	if dir == "" {
		dir = Asc
	}
	value := o.Column + " " + string(dir)
	switch o.Nulls {
	case NullsFirst:
		return []string{"(" + o.Column + " IS NULL) DESC", value}
	case NullsLast:
		return []string{"(" + o.Column + " IS NULL) ASC", value}
	default:
		return []string{value}
	}
}

// OrderClauses flattens a list of sort keys into ORDER BY clauses.
func OrderClauses(orders []OrderBy) []string {
	var clauses []string
	for _, o := range orders {
		clauses = append(clauses, o.Clauses()...)
	}
	return clauses
}
