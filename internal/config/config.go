package config

const (
	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultMaxConns and DefaultMinConns size the shared connection pool.
	// Mutations are short single-row transactions and reads are paged, so a
	// small pool with a warm floor covers both.
	DefaultMaxConns = 10
	DefaultMinConns = 2

	// DefaultMaxInParameters caps how many values a single set-membership
	// predicate may bind. Larger sets are split into OR'd chunks before
	// execution. Kept below common backend statement-parameter ceilings.
	DefaultMaxInParameters = 2000

	// DefaultVariableFetchLimit bounds how many variable rows one eager
	// include batch may return. Exceeding it truncates the hydrated
	// collections rather than failing the query.
	DefaultVariableFetchLimit = 20000
)
