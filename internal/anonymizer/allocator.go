package anonymizer

import "strconv"

// Identifier is the token that replaces a PII substring, rendered as
// "<n><suffix>", e.g. "2.1" for the second full name.
type Identifier struct {
	N        int
	Category Category
}

func (id Identifier) String() string {
	return strconv.Itoa(id.N) + id.Category.Suffix()
}

// Allocator hands out per-category identifiers starting at 1.
// Counters are independent, so "1.1", "1.2" and "1.3" can coexist.
type Allocator struct {
	next map[Category]int
}

// NewAllocator returns an Allocator with every counter at 1.
func NewAllocator() *Allocator {
	return &Allocator{next: make(map[Category]int, len(Categories))}
}

// Allocate returns the current identifier for c and advances its counter.
func (a *Allocator) Allocate(c Category) Identifier {
	n := a.next[c] + 1
	a.next[c] = n
	return Identifier{N: n, Category: c}
}
