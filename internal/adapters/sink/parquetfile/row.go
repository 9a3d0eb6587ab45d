package parquetfile

import "github.com/georgenavi/esimdb-scraper/internal/services/scrape/domain"

// Row is the on-disk column layout; nil pointers are written as nulls
type Row struct {
	Country       string   `parquet:"name=country, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Region        string   `parquet:"name=region, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Provider      string   `parquet:"name=provider, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PlanName      string   `parquet:"name=plan_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	PriceUSD      *float32 `parquet:"name=price_usd, type=FLOAT, repetitiontype=OPTIONAL"`
	DataGB        *float32 `parquet:"name=data_gb, type=FLOAT, repetitiontype=OPTIONAL"`
	ValidityDays  *int32   `parquet:"name=validity_days, type=INT32, repetitiontype=OPTIONAL"`
	ScrapeDate    string   `parquet:"name=scrape_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	SchemaVersion string   `parquet:"name=schema_version, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

// FromValidated projects a validated record onto the file schema
func FromValidated(v domain.Validated) Row {
	r := Row{
		Country:       v.Country,
		Region:        v.Region,
		Provider:      v.Provider,
		PlanName:      v.PlanName,
		ScrapeDate:    v.ScrapeDate,
		SchemaVersion: v.SchemaVersion,
	}
	if v.PriceUSD != nil {
		f := float32(*v.PriceUSD)
		r.PriceUSD = &f
	}
	if v.DataGB != nil {
		f := float32(*v.DataGB)
		r.DataGB = &f
	}
	if v.ValidityDays != nil {
		d := int32(*v.ValidityDays)
		r.ValidityDays = &d
	}
	return r
}
