package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ExchangeRateSnapshot maps currency codes to rates for one refresh cycle.
// It is fetched once per cycle and read-only afterwards.
type ExchangeRateSnapshot map[string]float64

// RawCountry is one record from the country catalog. The feed has been seen
// in two shapes: the restcountries v3 layout (name object, capital list,
// currencies keyed by code) and a flat legacy layout (string fields,
// currencies as an ordered list). Shape detection happens once here, in
// UnmarshalJSON, so the rest of the pipeline only sees canonical fields.
type RawCountry struct {
	Name         string
	Capital      *string
	Region       *string
	Population   *int64
	FlagURL      *string
	CurrencyCode *string
}

type rawCountryV3 struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital    []string `json:"capital"`
	Region     *string  `json:"region"`
	Population *int64   `json:"population"`
	Flags      struct {
		PNG string `json:"png"`
	} `json:"flags"`
	Currencies json.RawMessage `json:"currencies"`
}

type rawCountryFlat struct {
	Name       string  `json:"name"`
	Capital    *string `json:"capital"`
	Region     *string `json:"region"`
	Population *int64  `json:"population"`
	Flag       *string `json:"flag"`
	Currencies []struct {
		Code   string `json:"code"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
}

func (r *RawCountry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Name json.RawMessage `json:"name"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if isJSONObject(probe.Name) {
		return r.decodeV3(data)
	}
	return r.decodeFlat(data)
}

func (r *RawCountry) decodeV3(data []byte) error {
	var ext rawCountryV3
	if err := json.Unmarshal(data, &ext); err != nil {
		return fmt.Errorf("invalid country record: %w", err)
	}
	r.Name = ext.Name.Common
	if len(ext.Capital) > 0 {
		r.Capital = &ext.Capital[0]
	}
	r.Region = ext.Region
	r.Population = ext.Population
	if ext.Flags.PNG != "" {
		r.FlagURL = &ext.Flags.PNG
	}
	r.CurrencyCode = firstObjectKey(ext.Currencies)
	return nil
}

func (r *RawCountry) decodeFlat(data []byte) error {
	var ext rawCountryFlat
	if err := json.Unmarshal(data, &ext); err != nil {
		return fmt.Errorf("invalid country record: %w", err)
	}
	r.Name = ext.Name
	r.Capital = ext.Capital
	r.Region = ext.Region
	r.Population = ext.Population
	r.FlagURL = ext.Flag
	if len(ext.Currencies) > 0 && ext.Currencies[0].Code != "" {
		r.CurrencyCode = &ext.Currencies[0].Code
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '{'
		}
	}
	return false
}

// firstObjectKey returns the first key of a JSON object in document order.
// The feed lists the primary currency first, so key order matters; decoding
// into a Go map would lose it.
func firstObjectKey(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	tok, err = dec.Token()
	if err != nil {
		return nil
	}
	key, ok := tok.(string)
	if !ok || key == "" {
		return nil
	}
	return &key
}
