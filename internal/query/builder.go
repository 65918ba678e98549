package query

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/procflow/taskstore/internal/domain"
)

// Term is one AND-composed element of the tree: a single predicate, or the
// disjunction of its predicates when it holds more than one.
type Term struct {
	Preds []Predicate
}

// Tree is the resolved sequence of AND terms, in accumulation order.
type Tree struct {
	Terms []Term
}

// Builder accumulates predicates into an implicit top-level AND set plus
// explicit OR groups. Filter methods on the query surfaces funnel into Add;
// between BeginOr and EndOr every added predicate becomes a sibling disjunct
// of the open group, and the group as a whole is AND'd with the rest.
//
// The builder is fail-fast in spirit: the first invalid call records its
// error immediately and every later resolution returns it, so no storage
// round trip ever happens for a malformed query.
type Builder struct {
	terms []Term
	group *Term
	err   error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Err returns the first error recorded by an invalid builder call.
func (b *Builder) Err() error {
	return b.err
}

// Fail records err if no earlier error was recorded.
func (b *Builder) Fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Failf records a formatted illegal-argument error.
func (b *Builder) Failf(format string, args ...any) {
	b.Fail(fmt.Errorf("%w: %s", domain.ErrIllegalArgument, fmt.Sprintf(format, args...)))
}

// Add appends a predicate to the open OR group, or as its own top-level term.
func (b *Builder) Add(p Predicate) {
	if b.err != nil {
		return
	}
	if b.group != nil {
		b.group.Preds = append(b.group.Preds, p)
		return
	}
	b.terms = append(b.terms, Term{Preds: []Predicate{p}})
}

// AddAll appends several predicates into the same disjunction level: inside
// an open OR group they become additional siblings, at top level they form a
// single OR'd term. The parameter-bounded splitter relies on this to chunk a
// set predicate without introducing an extra AND level.
func (b *Builder) AddAll(preds []Predicate) {
	if b.err != nil || len(preds) == 0 {
		return
	}
	if b.group != nil {
		b.group.Preds = append(b.group.Preds, preds...)
		return
	}
	b.terms = append(b.terms, Term{Preds: preds})
}

// BeginOr opens an OR group. Groups do not nest.
func (b *Builder) BeginOr() {
	if b.err != nil {
		return
	}
	if b.group != nil {
		b.Failf("or() groups cannot be nested")
		return
	}
	b.group = &Term{}
}

// EndOr closes the open OR group and ANDs it with the accumulated terms. An
// empty group is dropped.
func (b *Builder) EndOr() {
	if b.err != nil {
		return
	}
	if b.group == nil {
		b.Failf("endOr() called without a matching or()")
		return
	}
	if len(b.group.Preds) > 0 {
		b.terms = append(b.terms, *b.group)
	}
	b.group = nil
}

// InOrGroup reports whether an OR group is currently open.
func (b *Builder) InOrGroup() bool {
	return b.group != nil
}

// Tree returns the accumulated tree. An unclosed OR group is a usage error.
func (b *Builder) Tree() (Tree, error) {
	if b.err != nil {
		return Tree{}, b.err
	}
	if b.group != nil {
		return Tree{}, fmt.Errorf("%w: or() group left open", domain.ErrIllegalArgument)
	}
	return Tree{Terms: b.terms}, nil
}

// Resolve turns the accumulated tree into a single squirrel conjunction,
// splitting oversized IN predicates at maxInParams. Resolution is
// deterministic and order-preserving. A nil result means no filtering.
func (b *Builder) Resolve(maxInParams int) (sq.Sqlizer, error) {
	tree, err := b.Tree()
	if err != nil {
		return nil, err
	}
	return resolve(tree, maxInParams), nil
}

func resolve(tree Tree, maxInParams int) sq.Sqlizer {
	if len(tree.Terms) == 0 {
		return nil
	}
	conj := make(sq.And, 0, len(tree.Terms))
	for _, term := range tree.Terms {
		preds := splitTerm(term.Preds, maxInParams)
		if len(preds) == 1 {
			conj = append(conj, preds[0].toSqlizer())
			continue
		}
		disj := make(sq.Or, 0, len(preds))
		for _, p := range preds {
			disj = append(disj, p.toSqlizer())
		}
		conj = append(conj, disj)
	}
	return conj
}
