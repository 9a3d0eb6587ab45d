package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/georgenavi/esimdb-scraper/internal/platform/validate"
	"github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"

	"github.com/shopspring/decimal"
)

// SuspiciousValidityDays is the soft ceiling above which validity is kept but flagged
const SuspiciousValidityDays = 3650

// contract is the row shape every written record must satisfy
type contract struct {
	ID            string   `json:"id" validate:"required,max=128"`
	Country       string   `json:"country" validate:"required"`
	PlanName      string   `json:"plan_name" validate:"required,max=512"`
	PriceUSD      *float64 `json:"price_usd" validate:"omitempty,gt=0"`
	DataGB        *float64 `json:"data_gb" validate:"omitempty,gt=0"`
	ValidityDays  *int     `json:"validity_days" validate:"omitempty,gt=0,lte=2147483647"`
	ScrapeDate    string   `json:"scrape_date" validate:"required,yyyymmdd"`
	SchemaVersion string   `json:"schema_version" validate:"required"`
}

type validator struct {
	schema string
}

// NewValidator returns a record validator stamping schemaVersion on every record
func NewValidator(schemaVersion string) domain.Validator {
	return validator{schema: schemaVersion}
}

// Validate degrades bad numeric fields to absent and drops records without id or name
func (v validator) Validate(rec domain.Record, scrapeDate string) (domain.Validated, []domain.Degradation, error) {
	rec.ID = strings.TrimSpace(rec.ID)
	rec.PlanName = strings.TrimSpace(rec.PlanName)
	if rec.ID == "" {
		return domain.Validated{}, nil, &domain.Rejection{Reason: domain.ReasonMissingID}
	}
	if rec.PlanName == "" {
		return domain.Validated{}, nil, &domain.Rejection{Reason: domain.ReasonMissingName, Detail: "id=" + rec.ID}
	}

	var degs []domain.Degradation
	rec.PriceUSD, degs = positive("price_usd", rec.PriceUSD, degs)
	if rec.PriceUSD != nil {
		r, _ := decimal.NewFromFloat(*rec.PriceUSD).Round(2).Float64()
		if r > 0 {
			rec.PriceUSD = &r
		} else {
			degs = append(degs, domain.Degradation{Field: "price_usd", Reason: domain.ReasonNonPositive, Value: fmtFloat(*rec.PriceUSD)})
			rec.PriceUSD = nil
		}
	}
	rec.DataGB, degs = positive("data_gb", rec.DataGB, degs)

	if d := rec.ValidityDays; d != nil {
		switch {
		case *d <= 0:
			degs = append(degs, domain.Degradation{Field: "validity_days", Reason: domain.ReasonNonPositive, Value: strconv.Itoa(*d)})
			rec.ValidityDays = nil
		case *d > SuspiciousValidityDays:
			degs = append(degs, domain.Degradation{Field: "validity_days", Reason: domain.ReasonSuspicious, Value: strconv.Itoa(*d), Kept: true})
		}
	}
	if strings.TrimSpace(rec.Provider) == "" {
		degs = append(degs, domain.Degradation{Field: "provider", Reason: domain.ReasonAbsent, Kept: true})
	}

	out := domain.Validated{Record: rec, ScrapeDate: scrapeDate, SchemaVersion: v.schema}
	if err := validate.Struct(contract{
		ID:            out.ID,
		Country:       out.Country,
		PlanName:      out.PlanName,
		PriceUSD:      out.PriceUSD,
		DataGB:        out.DataGB,
		ValidityDays:  out.ValidityDays,
		ScrapeDate:    out.ScrapeDate,
		SchemaVersion: out.SchemaVersion,
	}); err != nil {
		return domain.Validated{}, degs, &domain.Rejection{Reason: domain.ReasonContract, Detail: err.Error()}
	}
	return out, degs, nil
}

// positive keeps p only when it is finite and above zero, also once narrowed
// to the float32 the output columns store
func positive(field string, p *float64, degs []domain.Degradation) (*float64, []domain.Degradation) {
	if p == nil {
		return nil, degs
	}
	f := *p
	narrow := float64(float32(f))
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || math.IsInf(narrow, 0):
		return nil, append(degs, domain.Degradation{Field: field, Reason: domain.ReasonNonFinite, Value: fmtFloat(f)})
	case f <= 0 || narrow <= 0:
		return nil, append(degs, domain.Degradation{Field: field, Reason: domain.ReasonNonPositive, Value: fmtFloat(f)})
	}
	return &f, degs
}

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
