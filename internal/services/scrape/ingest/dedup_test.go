package ingest

import "testing"

func TestTracker(t *testing.T) {
	tr := NewTracker()
	seq := []struct {
		id   string
		want bool
	}{{"1", true}, {"2", true}, {"1", false}, {"3", true}, {"2", false}}
	for _, s := range seq {
		if got := tr.Observe(s.id); got != s.want {
			t.Fatalf("Observe(%q) = %v want %v", s.id, got, s.want)
		}
	}
	if tr.Len() != 3 {
		t.Fatalf("Len = %d want 3", tr.Len())
	}
}
