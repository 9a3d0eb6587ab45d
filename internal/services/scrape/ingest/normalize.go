package ingest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/georgenavi/esimdb-scraper/internal/adapters/upstream/esimdb"
	"github.com/georgenavi/esimdb-scraper/internal/core/normalize"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"
)

// shape tags which upstream variant a field arrived in
type shape uint8

const (
	shapeAbsent shape = iota
	shapeNested
	shapeFlat
)

// priceVariant is the resolved price field before numeric parsing
type priceVariant struct {
	shape shape
	field string
	raw   json.RawMessage
}

// capacityVariant is the resolved capacity field before unit conversion
type capacityVariant struct {
	shape shape
	field string
	value json.RawMessage
	unit  json.RawMessage
}

// gbPerUnit converts a capacity unit to gigabytes. Decimal units, as the upstream quotes them
var gbPerUnit = map[string]float64{
	"mb":  1.0 / 1000,
	"mib": 1.0 / 1000,
	"gb":  1,
	"gib": 1,
	"tb":  1000,
	"tib": 1000,
}

type normalizer struct{}

// NewNormalizer returns the field normalizer
func NewNormalizer() domain.Normalizer { return normalizer{} }

// Normalize never fails on a single field: ambiguity degrades that field to absent.
// Only a record that is not a JSON object is rejected
func (normalizer) Normalize(c domain.Country, page domain.RawPage, raw domain.RawRecord) (domain.Record, []domain.Degradation, error) {
	m, ok := esimdb.Object(raw)
	if !ok {
		return domain.Record{}, nil, &domain.Rejection{Reason: domain.ReasonNotAnObject, Detail: preview(raw)}
	}

	rec := domain.Record{
		ID:       recordID(m),
		Country:  normalize.Text(c.Name),
		Region:   normalize.Text(c.Region),
		Provider: provider(page, m),
		PlanName: firstText(m, "enName", "name"),
	}
	if rec.Country == "" {
		rec.Country = c.Slug
	}

	var degs []domain.Degradation
	rec.PriceUSD, degs = price(resolvePrice(m), degs)
	rec.DataGB, degs = capacity(resolveCapacity(m), degs)
	rec.ValidityDays, degs = validity(m, degs)
	return rec, degs, nil
}

func resolvePrice(m map[string]json.RawMessage) priceVariant {
	for _, n := range []struct{ outer, inner string }{{"price", "usd"}, {"prices", "USD"}} {
		v, ok := esimdb.Present(m, n.outer)
		if !ok {
			continue
		}
		if obj, ok := esimdb.Object(v); ok {
			if u, ok := esimdb.Present(obj, n.inner); ok {
				return priceVariant{shape: shapeNested, field: n.outer + "." + n.inner, raw: u}
			}
		}
	}
	for _, k := range []string{"usdPromoPrice", "usdPrice", "price"} {
		v, ok := esimdb.Present(m, k)
		if !ok {
			continue
		}
		if _, isObj := esimdb.Object(v); isObj {
			continue
		}
		return priceVariant{shape: shapeFlat, field: k, raw: v}
	}
	return priceVariant{}
}

func resolveCapacity(m map[string]json.RawMessage) capacityVariant {
	v, ok := esimdb.Present(m, "capacity")
	if !ok {
		return capacityVariant{}
	}
	if obj, ok := esimdb.Object(v); ok {
		val, ok := esimdb.Present(obj, "value")
		if !ok {
			return capacityVariant{}
		}
		unit, _ := esimdb.Present(obj, "unit")
		return capacityVariant{shape: shapeNested, field: "capacity.value", value: val, unit: unit}
	}
	unit, _ := esimdb.Present(m, "capacityUnit")
	return capacityVariant{shape: shapeFlat, field: "capacity", value: v, unit: unit}
}

func price(p priceVariant, degs []domain.Degradation) (*float64, []domain.Degradation) {
	if p.shape == shapeAbsent {
		return nil, append(degs, domain.Degradation{Field: "price_usd", Reason: domain.ReasonAbsent})
	}
	f, ok := esimdb.Float(p.raw)
	if !ok {
		return nil, append(degs, domain.Degradation{Field: "price_usd", Reason: domain.ReasonUnparseable, Value: p.field + "=" + preview(p.raw)})
	}
	return &f, degs
}

func capacity(c capacityVariant, degs []domain.Degradation) (*float64, []domain.Degradation) {
	if c.shape == shapeAbsent {
		return nil, append(degs, domain.Degradation{Field: "data_gb", Reason: domain.ReasonAbsent})
	}
	v, ok := esimdb.Float(c.value)
	if !ok {
		return nil, append(degs, domain.Degradation{Field: "data_gb", Reason: domain.ReasonUnparseable, Value: c.field + "=" + preview(c.value)})
	}
	if c.unit == nil {
		return nil, append(degs, domain.Degradation{Field: "data_gb", Reason: domain.ReasonUnitMissing, Value: preview(c.value)})
	}
	unit, _ := esimdb.String(c.unit)
	factor, known := gbPerUnit[strings.ToLower(strings.TrimSpace(unit))]
	if !known {
		return nil, append(degs, domain.Degradation{Field: "data_gb", Reason: domain.ReasonUnitUnknown, Value: preview(c.unit)})
	}
	gb := v * factor
	return &gb, degs
}

func validity(m map[string]json.RawMessage, degs []domain.Degradation) (*int, []domain.Degradation) {
	for _, k := range []string{"validity", "period"} {
		v, ok := esimdb.Present(m, k)
		if !ok {
			continue
		}
		n, ok := esimdb.Int(v)
		if !ok {
			return nil, append(degs, domain.Degradation{Field: "validity_days", Reason: domain.ReasonUnparseable, Value: k + "=" + preview(v)})
		}
		return &n, degs
	}
	return nil, degs
}

func recordID(m map[string]json.RawMessage) string {
	v, ok := esimdb.Present(m, "id")
	if !ok {
		return ""
	}
	s, _ := esimdb.String(v)
	return strings.TrimSpace(s)
}

// provider resolves an id through the page's providers map, an inline {name}
// object, or a plain string name. Unknown numeric ids resolve to empty
func provider(page domain.RawPage, m map[string]json.RawMessage) string {
	v, ok := esimdb.Present(m, "provider")
	if !ok {
		return ""
	}
	if obj, ok := esimdb.Object(v); ok {
		return firstText(obj, "name")
	}
	id, ok := esimdb.String(v)
	if !ok {
		return ""
	}
	if name, ok := page.Provider(id); ok {
		return normalize.Text(name)
	}
	if isJSONString(v) {
		return normalize.Text(id)
	}
	return ""
}

func firstText(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := esimdb.Present(m, k)
		if !ok || !isJSONString(v) {
			continue
		}
		s, _ := esimdb.String(v)
		if t := normalize.Text(s); t != "" {
			return t
		}
	}
	return ""
}

func isJSONString(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '"'
}

// preview renders raw for logs, compacted and truncated
func preview(raw json.RawMessage) string {
	const limit = 64
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		b.Reset()
		b.Write(bytes.TrimSpace(raw))
	}
	s := b.String()
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
