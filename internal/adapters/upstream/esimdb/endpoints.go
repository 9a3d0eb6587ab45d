package esimdb

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/georgenavi/esimdb-scraper/internal/core/normalize"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
)

// Countries lists every country the catalog knows about.
// Entries without a slug or a name are skipped; region is trimmed and title-cased
func (s *Session) Countries(ctx context.Context) ([]Country, error) {
	body, attempts, err := s.get(ctx, "/countries", url.Values{"locale": {s.opts.Locale}})
	if err != nil {
		return nil, &FetchError{Attempts: attempts, Err: err}
	}

	var raws []json.RawMessage
	if t := bytes.TrimSpace(body); len(t) == 0 || t[0] != '[' {
		return nil, &FetchError{Attempts: attempts, Err: perr.New(perr.ErrorCodeJSON, "esimdb /countries did not return an array")}
	}
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, &FetchError{Attempts: attempts, Err: perr.Wrap(err, perr.ErrorCodeJSON, "esimdb /countries decode failed")}
	}

	out := make([]Country, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		m, ok := Object(raw)
		if !ok {
			skipped++
			continue
		}
		slug, _ := String(m["slug"])
		name, _ := String(m["name"])
		slug, name = normalize.Text(slug), normalize.Text(name)
		if slug == "" || name == "" {
			skipped++
			continue
		}
		var region string
		if r, ok := m["region"]; ok {
			if t := bytes.TrimSpace(r); len(t) > 0 && t[0] == '"' {
				rs, _ := String(r)
				region = normalize.Title(rs)
			}
		}
		out = append(out, Country{Slug: slug, Name: name, Region: region})
	}
	if skipped > 0 {
		s.log.Warn().Int("skipped", skipped).Int("kept", len(out)).Msg("esimdb countries without slug or name skipped")
	}
	return out, nil
}

// PlansPage fetches one page of data plans for a country slug.
// Transport failures and undecodable envelopes are returned as *FetchError
func (s *Session) PlansPage(ctx context.Context, slug string, page int) (Page, error) {
	q := url.Values{
		"page":   {strconv.Itoa(page)},
		"locale": {s.opts.Locale},
	}
	body, attempts, err := s.get(ctx, "/countries/"+url.PathEscape(slug)+"/data-plans", q)
	if err != nil {
		return Page{}, &FetchError{Country: slug, Page: page, Attempts: attempts, Err: err}
	}

	p, err := s.decodePage(slug, page, body)
	if err != nil {
		return Page{}, &FetchError{Country: slug, Page: page, Attempts: attempts, Err: err}
	}
	return p, nil
}

type envelope struct {
	NumberOfPages json.RawMessage `json:"numberOfPages"`
	Providers     json.RawMessage `json:"providers"`
	Plans         json.RawMessage `json:"plans"`
	Featured      json.RawMessage `json:"featured"`
}

// decodePage resolves the envelope variant once. Anything inside the envelope
// that is the wrong kind is logged and treated as missing; only a body that is
// neither an object nor an array is an error
func (s *Session) decodePage(slug string, page int, body []byte) (Page, error) {
	p := Page{Country: slug, Number: page}
	t := bytes.TrimSpace(body)
	if len(t) == 0 {
		return p, perr.Newf(perr.ErrorCodeJSON, "esimdb %s page %d: empty body", slug, page)
	}

	switch t[0] {
	case '[':
		p.Shape = ShapeArray
		if err := json.Unmarshal(t, &p.Records); err != nil {
			return p, perr.Wrapf(err, perr.ErrorCodeJSON, "esimdb %s page %d: decode array", slug, page)
		}
		return p, nil
	case '{':
		p.Shape = ShapeObject
	default:
		return p, perr.Newf(perr.ErrorCodeJSON, "esimdb %s page %d: unexpected envelope", slug, page)
	}

	var env envelope
	if err := json.Unmarshal(t, &env); err != nil {
		return p, perr.Wrapf(err, perr.ErrorCodeJSON, "esimdb %s page %d: decode envelope", slug, page)
	}

	if v := env.NumberOfPages; !isNull(v) {
		if n, ok := Int(v); ok {
			p.NumberOfPages = &n
		} else {
			s.log.Warn().Str("country", slug).Int("page", page).RawJSON("value", v).Msg("esimdb numberOfPages not numeric, ignored")
		}
	}

	p.Providers = s.decodeProviders(slug, page, env.Providers)
	p.Records = append(s.decodeList(slug, page, "plans", env.Plans), s.decodeList(slug, page, "featured", env.Featured)...)
	return p, nil
}

func (s *Session) decodeList(slug string, page int, field string, raw json.RawMessage) []json.RawMessage {
	if isNull(raw) {
		return nil
	}
	t := bytes.TrimSpace(raw)
	var out []json.RawMessage
	if t[0] != '[' || json.Unmarshal(t, &out) != nil {
		s.log.Warn().Str("country", slug).Int("page", page).Str("field", field).Msg("esimdb list field is not an array, ignored")
		return nil
	}
	return out
}

// decodeProviders accepts {id: {name}} and {id: "name"}
func (s *Session) decodeProviders(slug string, page int, raw json.RawMessage) map[string]string {
	m, ok := Object(raw)
	if !ok {
		if !isNull(raw) {
			s.log.Warn().Str("country", slug).Int("page", page).Msg("esimdb providers is not an object, ignored")
		}
		return nil
	}
	out := make(map[string]string, len(m))
	for id, v := range m {
		if obj, ok := Object(v); ok {
			if name, ok := String(obj["name"]); ok {
				out[id] = normalize.Text(name)
			}
			continue
		}
		if name, ok := String(v); ok {
			out[id] = normalize.Text(name)
		}
	}
	return out
}
