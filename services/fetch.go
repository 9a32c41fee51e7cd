package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"countrypulse/models"
	"countrypulse/system"
)

const (
	SourceCountries = "countries"
	SourceRates     = "exchange-rates"
)

// FetchError marks a failed read from one of the upstream feeds: non-2xx
// status, empty body, malformed payload, or a transport error.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s feed unavailable: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SourceClient reads the two upstream feeds the refresh cycle depends on:
// the country catalog and the exchange-rate mapping.
type SourceClient struct {
	client       *http.Client
	CountriesURL string
	ExchangeURL  string
}

func NewSourceClient(countriesURL, exchangeURL string, timeout time.Duration) *SourceClient {
	return &SourceClient{
		client: &http.Client{
			Timeout: timeout,
		},
		CountriesURL: countriesURL,
		ExchangeURL:  exchangeURL,
	}
}

// FetchCountries downloads the country catalog. Individual records that fail
// to decode are dropped with a warning; a payload that is not a JSON array
// at all fails the fetch.
func (c *SourceClient) FetchCountries(ctx context.Context) ([]models.RawCountry, error) {
	body, err := c.get(ctx, SourceCountries, c.CountriesURL)
	if err != nil {
		return nil, err
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, &FetchError{Source: SourceCountries, Err: fmt.Errorf("malformed payload: %w", err)}
	}

	countries := make([]models.RawCountry, 0, len(elements))
	dropped := 0
	for _, element := range elements {
		var raw models.RawCountry
		if err := json.Unmarshal(element, &raw); err != nil {
			dropped++
			continue
		}
		countries = append(countries, raw)
	}
	if dropped > 0 {
		system.Warn("Dropped %d undecodable country records from the catalog", dropped)
	}
	return countries, nil
}

// FetchRates downloads the currency-code to rate mapping.
func (c *SourceClient) FetchRates(ctx context.Context) (models.ExchangeRateSnapshot, error) {
	body, err := c.get(ctx, SourceRates, c.ExchangeURL)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Source: SourceRates, Err: fmt.Errorf("malformed payload: %w", err)}
	}
	if payload.Rates == nil {
		return nil, &FetchError{Source: SourceRates, Err: fmt.Errorf("payload has no rates")}
	}
	return models.ExchangeRateSnapshot(payload.Rates), nil
}

// get performs one upstream read. Success requires a 2xx status and a
// non-empty body; everything else becomes a FetchError naming the source.
func (c *SourceClient) get(ctx context.Context, source, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Source: source, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	if len(body) == 0 {
		return nil, &FetchError{Source: source, Err: fmt.Errorf("empty response body")}
	}
	return body, nil
}
