package storage

// State describes how many rows a single-row lookup matched.
type State int

const (
	// Absent means no row matched.
	Absent State = iota
	// Present means exactly one row matched.
	Present
	// Many means more than one row matched a lookup that expects at most one.
	Many
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Many:
		return "many"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single-row lookup.
type Result[T any] struct {
	state State
	value T
}

// Found wraps a single matched row.
func Found[T any](v T) Result[T] {
	return Result[T]{state: Present, value: v}
}

// NotFound is the result of a lookup with no matching row.
func NotFound[T any]() Result[T] {
	return Result[T]{state: Absent}
}

// Ambiguous is the result of a lookup that matched several rows.
func Ambiguous[T any]() Result[T] {
	return Result[T]{state: Many}
}

// FromRows builds a Result from the rows returned by a query limited to two rows.
func FromRows[T any](rows []T) Result[T] {
	switch len(rows) {
	case 0:
		return NotFound[T]()
	case 1:
		return Found(rows[0])
	default:
		return Ambiguous[T]()
	}
}

// State reports whether the lookup matched zero, one or many rows.
func (r Result[T]) State() State {
	return r.state
}

// Value returns the matched row. It is the zero value unless State is Present.
func (r Result[T]) Value() T {
	return r.value
}

// Get returns the matched row and whether exactly one row matched.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.state == Present
}
