package query

// splitTerm rewrites every IN predicate whose set exceeds maxInParams into
// OR'd chunked IN predicates within the same disjunction, preserving the
// membership semantics exactly. Other predicates pass through unchanged.
func splitTerm(preds []Predicate, maxInParams int) []Predicate {
	if maxInParams <= 0 {
		return preds
	}
	out := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p.Op != OpIn || len(p.Values) <= maxInParams {
			out = append(out, p)
			continue
		}
		for _, chunk := range Chunk(p.Values, maxInParams) {
			out = append(out, Predicate{Column: p.Column, Op: OpIn, Values: chunk})
		}
	}
	return out
}

// Chunk splits values into consecutive slices of at most size elements. The
// returned slices alias the input. An empty input yields no chunks.
func Chunk[T any](values []T, size int) [][]T {
	if size <= 0 || len(values) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
