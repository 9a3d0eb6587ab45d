package testkit

import (
	"testing"
	"time"
)

// owner is a one-slot semaphore held by whichever test currently owns the package-level seams
var owner = make(chan struct{}, 1)

// Serial holds the seam semaphore until t and its subtests finish
func Serial(t testing.TB) {
	t.Helper()
	owner <- struct{}{}
	t.Cleanup(func() { <-owner })
}

// Swap installs v in *seam until t finishes and returns the value it displaced
func Swap[T any](t testing.TB, seam *T, v T) (prev T) {
	t.Helper()
	prev, *seam = *seam, v
	t.Cleanup(func() { *seam = prev })
	return prev
}

// RecordSleeps replaces a sleeper seam with one that returns at once and
// appends each requested duration to the returned slice
func RecordSleeps(t testing.TB, seam *func(time.Duration)) *[]time.Duration {
	t.Helper()
	got := new([]time.Duration)
	Swap(t, seam, func(d time.Duration) { *got = append(*got, d) })
	return got
}
