package normalize

// dedupeSet is a capacity-bounded set of recently seen dedupe keys with
// FIFO eviction. Once the set is full, admitting a new key evicts the
// oldest one. Not safe for concurrent use; the normalizer serializes access.
type dedupeSet struct {
	seen  map[string]struct{}
	order []string
	head  int
	cap   int
}

func newDedupeSet(capacity int) *dedupeSet {
	if capacity <= 0 {
		capacity = 500
	}
	return &dedupeSet{
		seen:  make(map[string]struct{}, capacity),
		order: make([]string, 0, capacity),
		cap:   capacity,
	}
}

// Admit reports whether key is new, recording it if so.
func (d *dedupeSet) Admit(key string) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	if len(d.order) == d.cap {
		oldest := d.order[d.head]
		delete(d.seen, oldest)
		d.order[d.head] = key
		d.head = (d.head + 1) % d.cap
	} else {
		d.order = append(d.order, key)
	}
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of keys currently retained.
func (d *dedupeSet) Len() int {
	return len(d.seen)
}
