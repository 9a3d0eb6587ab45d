package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

var testland = domain.Country{Slug: "testland", Name: "Testland", Region: "Europe"}

func norm(t *testing.T, page domain.RawPage, raw string) (domain.Record, []domain.Degradation) {
	t.Helper()
	rec, degs, err := NewNormalizer().Normalize(testland, page, json.RawMessage(raw))
	if err != nil {
		t.Fatalf("normalize %s: %v", raw, err)
	}
	return rec, degs
}

func hasDeg(degs []domain.Degradation, field string, reason domain.Reason) bool {
	for _, d := range degs {
		if d.Field == field && d.Reason == reason {
			return true
		}
	}
	return false
}

func TestNormalizePriceVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
	}{
		{"nested price", `{"id":1,"price":{"usd":10}}`, 10},
		{"nested prices", `{"id":1,"prices":{"USD":"4.5"}}`, 4.5},
		{"nested wins over flat", `{"id":1,"price":{"usd":7},"usdPrice":9}`, 7},
		{"promo before list", `{"id":1,"usdPromoPrice":3,"usdPrice":9}`, 3},
		{"flat usdPrice", `{"id":1,"usdPrice":9.99}`, 9.99},
		{"flat numeric price", `{"id":1,"price":12}`, 12},
		{"nested without usd falls back", `{"id":1,"price":{"eur":5},"usdPrice":6}`, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := norm(t, domain.RawPage{}, tc.raw)
			if rec.PriceUSD == nil || *rec.PriceUSD != tc.want {
				t.Fatalf("price = %v want %v", rec.PriceUSD, tc.want)
			}
		})
	}
}

func TestNormalizePriceAbsentOrBad(t *testing.T) {
	rec, degs := norm(t, domain.RawPage{}, `{"id":1}`)
	if rec.PriceUSD != nil || !hasDeg(degs, "price_usd", domain.ReasonAbsent) {
		t.Fatalf("want absent price with warning, got %v %+v", rec.PriceUSD, degs)
	}
	rec, degs = norm(t, domain.RawPage{}, `{"id":1,"usdPrice":"free"}`)
	if rec.PriceUSD != nil || !hasDeg(degs, "price_usd", domain.ReasonUnparseable) {
		t.Fatalf("want unparseable price, got %v %+v", rec.PriceUSD, degs)
	}
}

func TestNormalizeCapacity(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		want   *float64
		reason domain.Reason
	}{
		{"nested gb", `{"capacity":{"value":3,"unit":"GB"}}`, ptr(3.0), ""},
		{"nested mb", `{"capacity":{"value":500,"unit":"mb"}}`, ptr(0.5), ""},
		{"flat with unit", `{"capacity":2,"capacityUnit":"TB"}`, ptr(2000.0), ""},
		{"flat gib string", `{"capacity":"1.5","capacityUnit":"GiB"}`, ptr(1.5), ""},
		{"flat without unit", `{"capacity":20}`, nil, domain.ReasonUnitMissing},
		{"large without unit", `{"capacity":1024}`, nil, domain.ReasonUnitMissing},
		{"unknown unit", `{"capacity":{"value":1,"unit":"parsecs"}}`, nil, domain.ReasonUnitUnknown},
		{"nested without value", `{"capacity":{"unit":"GB"}}`, nil, domain.ReasonAbsent},
		{"absent", `{}`, nil, domain.ReasonAbsent},
		{"garbage", `{"capacity":"lots","capacityUnit":"GB"}`, nil, domain.ReasonUnparseable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, degs := norm(t, domain.RawPage{}, tc.raw)
			switch {
			case tc.want == nil && rec.DataGB != nil:
				t.Fatalf("want absent data_gb, got %v", *rec.DataGB)
			case tc.want != nil && (rec.DataGB == nil || *rec.DataGB != *tc.want):
				t.Fatalf("data_gb = %v want %v", rec.DataGB, *tc.want)
			}
			if tc.reason != "" && !hasDeg(degs, "data_gb", tc.reason) {
				t.Fatalf("want %s degradation, got %+v", tc.reason, degs)
			}
		})
	}
}

func TestNormalizeValidity(t *testing.T) {
	rec, _ := norm(t, domain.RawPage{}, `{"validity":30}`)
	if rec.ValidityDays == nil || *rec.ValidityDays != 30 {
		t.Fatalf("validity = %v", rec.ValidityDays)
	}
	rec, _ = norm(t, domain.RawPage{}, `{"period":"7"}`)
	if rec.ValidityDays == nil || *rec.ValidityDays != 7 {
		t.Fatalf("period = %v", rec.ValidityDays)
	}
	rec, degs := norm(t, domain.RawPage{}, `{"validity":"a month"}`)
	if rec.ValidityDays != nil || !hasDeg(degs, "validity_days", domain.ReasonUnparseable) {
		t.Fatalf("want unparseable validity, got %v %+v", rec.ValidityDays, degs)
	}
	rec, degs = norm(t, domain.RawPage{}, `{}`)
	if rec.ValidityDays != nil || hasDeg(degs, "validity_days", domain.ReasonAbsent) {
		t.Fatalf("missing validity is plain absence")
	}
}

func TestNormalizeIdentityFields(t *testing.T) {
	page := domain.RawPage{Providers: map[string]string{"p1": "Airalo", "7": "Holafly"}}
	cases := []struct {
		raw      string
		id       string
		name     string
		provider string
	}{
		{`{"id":42,"enName":"  Starter\u200b  5GB ","name":"ignored","provider":"p1"}`, "42", "Starter 5GB", "Airalo"},
		{`{"id":"abc","name":"Local","provider":7}`, "abc", "Local", "Holafly"},
		{`{"id":"x","name":"Inline","provider":{"name":"Nomad"}}`, "x", "Inline", "Nomad"},
		{`{"id":"y","name":"Plain","provider":"Ubigi"}`, "y", "Plain", "Ubigi"},
		{`{"id":"z","name":"Unknown","provider":99}`, "z", "Unknown", ""},
		{`{"enName":5,"name":"Fallback"}`, "", "Fallback", ""},
	}
	for _, tc := range cases {
		rec, _ := norm(t, page, tc.raw)
		if rec.ID != tc.id || rec.PlanName != tc.name || rec.Provider != tc.provider {
			t.Fatalf("%s: got id=%q name=%q provider=%q", tc.raw, rec.ID, rec.PlanName, rec.Provider)
		}
		if rec.Country != "Testland" || rec.Region != "Europe" {
			t.Fatalf("entity fields not stamped: %+v", rec)
		}
	}
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"plan"`, `null`, `12`} {
		_, _, err := NewNormalizer().Normalize(testland, domain.RawPage{}, json.RawMessage(raw))
		rej, ok := err.(*domain.Rejection)
		if !ok || rej.Reason != domain.ReasonNotAnObject {
			t.Fatalf("%s: want not_an_object rejection, got %v", raw, err)
		}
	}
}

func TestNormalizeCountryFallsBackToSlug(t *testing.T) {
	rec, _, err := NewNormalizer().Normalize(domain.Country{Slug: "nowhere"}, domain.RawPage{}, json.RawMessage(`{"id":1}`))
	if err != nil || rec.Country != "nowhere" {
		t.Fatalf("country = %q err=%v", rec.Country, err)
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := `"` + strings.Repeat("a", 80) + `"`
	if got := preview(json.RawMessage(long)); len(got) != 67 {
		t.Fatalf("preview len = %d (%q)", len(got), got)
	}
	if got := preview(json.RawMessage(`{ "a" : 1 }`)); got != `{"a":1}` {
		t.Fatalf("preview = %q", got)
	}
}

func ptr[T any](v T) *T { return &v }
