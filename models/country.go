package models

import (
	"time"
)

// Country is the canonical persisted record for one country. Name is the
// identity; all lookups treat it case-insensitively.
type Country struct {
	Name            string    `gorm:"primaryKey" json:"name"`
	Capital         *string   `json:"capital"`
	Region          *string   `json:"region"`
	Population      *int64    `json:"population"`
	CurrencyCode    *string   `json:"currency_code"`
	ExchangeRate    *float64  `json:"exchange_rate"`
	EstimatedGdp    float64   `json:"estimated_gdp"`
	FlagURL         *string   `json:"flagUrl"`
	LastRefreshedAt time.Time `json:"lastRefreshedAt"`
}

// Status is the payload returned by GET /api/status. LastRefreshedAt is nil
// until the first record has been written.
type Status struct {
	TotalCountries  int64   `json:"total_countries"`
	LastRefreshedAt *string `json:"last_refreshed_at"`
}
