package anonymizer

// NameKey is a name token registered by the full-name pass: a bare first or
// last name, or the same name preceded by its title ("Dr. Smith").
type NameKey struct {
	Text   string
	Titled bool
}

// Registry maps name tokens to the numeric prefix of the titled full-name
// match that introduced them. The first registration of a key wins; later
// people sharing a token resolve to the earlier prefix.
type Registry struct {
	prefixes map[string]int
	order    []NameKey
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{prefixes: make(map[string]int)}
}

// Register records key with prefix n unless the key is already present.
// It reports whether the key was newly added.
func (r *Registry) Register(key NameKey, n int) bool {
	if _, exists := r.prefixes[key.Text]; exists {
		return false
	}
	r.prefixes[key.Text] = n
	r.order = append(r.order, key)
	return true
}

// Lookup returns the prefix registered for text.
func (r *Registry) Lookup(text string) (int, bool) {
	n, ok := r.prefixes[text]
	return n, ok
}

// Keys returns the registered keys in insertion order.
func (r *Registry) Keys() []NameKey {
	out := make([]NameKey, len(r.order))
	copy(out, r.order)
	return out
}

// Partition splits the keys into titled and untitled lists, each in
// insertion order.
func (r *Registry) Partition() (titled, untitled []NameKey) {
	for _, k := range r.order {
		if k.Titled {
			titled = append(titled, k)
		} else {
			untitled = append(untitled, k)
		}
	}
	return titled, untitled
}

// Len returns the number of registered keys.
func (r *Registry) Len() int { return len(r.order) }
