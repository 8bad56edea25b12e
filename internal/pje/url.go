package pje

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the public consultation endpoint of the PJe
	// comunicações portal.
	DefaultBaseURL = "https://comunica.pje.jus.br/consulta"

	// DefaultPageSize matches the portal's own page length.
	DefaultPageSize = 50

	// dateParamLayout is the DD/MM/YYYY format the portal expects in
	// query parameters.
	dateParamLayout = "02/01/2006"
)

// brazilStates holds the 27 federative unit codes accepted by the portal.
var brazilStates = map[string]struct{}{
	"AC": {}, "AL": {}, "AP": {}, "AM": {}, "BA": {}, "CE": {}, "DF": {},
	"ES": {}, "GO": {}, "MA": {}, "MT": {}, "MS": {}, "MG": {}, "PA": {},
	"PB": {}, "PR": {}, "PE": {}, "PI": {}, "RJ": {}, "RN": {}, "RS": {},
	"RO": {}, "RR": {}, "SC": {}, "SP": {}, "SE": {}, "TO": {},
}

// WithDefaults returns a copy of the query with the state code uppercased
// and zero paging fields replaced by their defaults.
func (q SearchQuery) WithDefaults() SearchQuery {
	q.StateCode = strings.ToUpper(strings.TrimSpace(q.StateCode))
	q.BarNumber = strings.TrimSpace(q.BarNumber)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// Validate checks the query against the portal's contract. It returns a
// *ValidationError naming the offending field, or nil.
func (q SearchQuery) Validate() error {
	if q.BarNumber == "" {
		return &ValidationError{Field: "bar_number", Reason: "must not be empty"}
	}
	if _, ok := brazilStates[q.StateCode]; !ok {
		return &ValidationError{Field: "state_code", Reason: fmt.Sprintf("%q is not a Brazilian UF code", q.StateCode)}
	}
	if q.Page < 1 {
		return &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if q.PageSize < 1 {
		return &ValidationError{Field: "page_size", Reason: "must be positive"}
	}
	if q.StartDate != nil && q.EndDate != nil && q.EndDate.Before(*q.StartDate) {
		return &ValidationError{Field: "end_date", Reason: "must not precede start_date"}
	}
	return nil
}

// BuildSearchURL renders the query as a portal consultation URL.
func BuildSearchURL(baseURL string, q SearchQuery) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	params := url.Values{}
	params.Set("numeroOab", q.BarNumber)
	params.Set("ufOab", q.StateCode)
	params.Set("pagina", strconv.Itoa(q.Page))
	params.Set("tamanhoPagina", strconv.Itoa(q.PageSize))
	if q.StartDate != nil {
		params.Set("dataDisponibilizacaoInicio", q.StartDate.Format(dateParamLayout))
	}
	if q.EndDate != nil {
		params.Set("dataDisponibilizacaoFim", q.EndDate.Format(dateParamLayout))
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}
