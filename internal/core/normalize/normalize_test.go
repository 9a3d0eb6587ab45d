package normalize

import (
	"sync"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"identity", "Europe 3GB", "Europe 3GB"},
		{"trim and collapse", "  Europe \t\n 3GB  ", "Europe 3GB"},
		{"invalid utf8 dropped", string([]byte{0xff, 'A', 'B', 0x80}), "AB"},
		{"controls become spaces", "A\x00B\x7fC", "A B C"},
		{"zero width removed", "Glo\u200bbal", "Global"},
		{"nfc compose", "Cafe\u0301", "Caf\u00e9"},
		{"empty", "", ""},
		{"only space", " \t ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.out {
				t.Fatalf("Text(%q) = %q, want %q", tt.in, got, tt.out)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"europe":           "Europe",
		"  NORTH america ": "North America",
		"":                 "",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Fatalf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"testland":           "testland",
		"United States":      "united_states",
		"Curaçao":            "curacao",
		"Côte d'Ivoire":      "cote_d_ivoire",
		"bosnia-herzegovina": "bosnia-herzegovina",
		"../etc/passwd":      "___etc_passwd",
		"a/b\\c":             "a_b_c",
		"":                   "",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdempotent(t *testing.T) {
	for _, in := range []string{"  Curaçao  ", "Côte d'Ivoire", "X\u200d Y"} {
		once := Slug(in)
		if Slug(once) != once {
			t.Fatalf("Slug not idempotent for %q: %q -> %q", in, once, Slug(once))
		}
		txt := Text(in)
		if Text(txt) != txt {
			t.Fatalf("Text not idempotent for %q", in)
		}
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				if Slug("Curaçao") != "curacao" {
					t.Error("unexpected slug under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}
