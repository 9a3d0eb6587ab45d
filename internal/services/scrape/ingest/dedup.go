package ingest

// Tracker remembers record ids accepted for one entity in one run. Not safe for concurrent use
type Tracker struct {
	seen map[string]struct{}
}

// NewTracker returns an empty tracker
func NewTracker() *Tracker { return &Tracker{seen: map[string]struct{}{}} }

// Observe returns true the first time id is seen and false for every repeat
func (t *Tracker) Observe(id string) bool {
	if _, dup := t.seen[id]; dup {
		return false
	}
	t.seen[id] = struct{}{}
	return true
}

// Len returns the number of distinct ids observed
func (t *Tracker) Len() int { return len(t.seen) }
