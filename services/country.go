package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"countrypulse/metrics"
	"countrypulse/models"
	"countrypulse/storage"
	"countrypulse/system"
)

// CountryService owns the refresh cycle and the read-side queries over the
// snapshot store.
type CountryService struct {
	store      *storage.Store
	source     *SourceClient
	calculator *Calculator
	summary    *SummaryService
	refreshMu  sync.Mutex
}

func NewCountryService(store *storage.Store, source *SourceClient, calculator *Calculator, summary *SummaryService) *CountryService {
	return &CountryService{
		store:      store,
		source:     source,
		calculator: calculator,
		summary:    summary,
	}
}

// Refresh runs one reconciliation cycle: fetch both feeds, normalize and
// rate-resolve each record, derive the GDP estimate, and merge the result
// into the store. At most one refresh runs at a time; concurrent callers
// block until the running cycle finishes.
//
// A country-catalog failure aborts the cycle with the store untouched. An
// exchange-rate failure is downgraded to an empty rate map, which excludes
// every record for that cycle but never destroys stored data. Record-level
// failures drop only the offending record.
func (s *CountryService) Refresh(ctx context.Context) (int, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	system.Info("Starting countries refresh...")

	raw, err := s.source.FetchCountries(ctx)
	if err != nil {
		metrics.FetchErrorInc(SourceCountries)
		system.Error("Country catalog fetch failed: %v", err)
		return 0, err
	}

	rates, err := s.source.FetchRates(ctx)
	if err != nil {
		metrics.FetchErrorInc(SourceRates)
		system.Warn("Exchange rate fetch failed, continuing with empty rates: %v", err)
		rates = models.ExchangeRateSnapshot{}
	}

	now := time.Now().UTC()
	candidates := make([]models.Country, 0, len(raw))
	skipped := 0
	for _, record := range raw {
		country, ok := Normalize(record)
		if !ok {
			skipped++
			continue
		}
		// A record whose currency cannot be resolved against this cycle's
		// snapshot carries no comparably-scaled metric; it sits out the
		// whole cycle instead of being stored with a zeroed estimate.
		if country.CurrencyCode == nil {
			skipped++
			continue
		}
		rate, ok := rates[*country.CurrencyCode]
		if !ok {
			skipped++
			continue
		}
		country.ExchangeRate = &rate
		country.EstimatedGdp = s.calculator.Estimate(country.Population, country.ExchangeRate)
		country.LastRefreshedAt = now
		candidates = append(candidates, country)
	}

	written, err := s.store.UpsertAll(candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to save countries: %w", err)
	}

	if err := s.summary.Invalidate(); err != nil {
		system.Warn("Failed to regenerate summary image: %v", err)
	}

	if total, err := s.store.Count(); err == nil {
		metrics.SetCountriesTracked(total)
	}
	metrics.ObserveRefresh(time.Since(start), written, skipped)
	system.Info("Saved %d countries (%d skipped) in %s", written, skipped, time.Since(start).Round(time.Millisecond))
	return written, nil
}

// ListCountries returns the stored snapshot, filtered by region or currency
// when given (region wins if both are set) and sorted by the requested key.
func (s *CountryService) ListCountries(region, currency, sortKey string) ([]models.Country, error) {
	var (
		countries []models.Country
		err       error
	)
	switch {
	case region != "":
		countries, err = s.store.ListByRegion(region)
	case currency != "":
		countries, err = s.store.ListByCurrency(currency)
	default:
		countries, err = s.store.List()
	}
	if err != nil {
		return nil, err
	}
	sortCountries(countries, sortKey)
	return countries, nil
}

// sortCountries orders in place. Unknown keys leave the slice as-is; the
// sort is stable so equal values keep their relative order.
func sortCountries(countries []models.Country, key string) {
	switch strings.ToLower(key) {
	case "gdp_desc":
		sort.SliceStable(countries, func(i, j int) bool {
			return countries[i].EstimatedGdp > countries[j].EstimatedGdp
		})
	case "gdp_asc":
		sort.SliceStable(countries, func(i, j int) bool {
			return countries[i].EstimatedGdp < countries[j].EstimatedGdp
		})
	case "population_desc":
		sort.SliceStable(countries, func(i, j int) bool {
			return populationOf(countries[i]) > populationOf(countries[j])
		})
	case "population_asc":
		sort.SliceStable(countries, func(i, j int) bool {
			return populationOf(countries[i]) < populationOf(countries[j])
		})
	}
}

func populationOf(c models.Country) int64 {
	if c.Population == nil {
		return 0
	}
	return *c.Population
}

// GetCountry looks up one country by case-insensitive name.
func (s *CountryService) GetCountry(name string) (*models.Country, error) {
	return s.store.GetByName(name)
}

// DeleteCountry removes one country by case-insensitive name.
func (s *CountryService) DeleteCountry(name string) error {
	if err := s.store.DeleteByName(name); err != nil {
		return err
	}
	if total, err := s.store.Count(); err == nil {
		metrics.SetCountriesTracked(total)
	}
	return nil
}

// Status reports the record count and the most recent refresh timestamp.
func (s *CountryService) Status() (models.Status, error) {
	total, err := s.store.Count()
	if err != nil {
		return models.Status{}, err
	}
	last, err := s.store.LastRefreshTime()
	if err != nil {
		return models.Status{}, err
	}

	status := models.Status{TotalCountries: total}
	if !last.IsZero() {
		formatted := last.UTC().Format(time.RFC3339)
		status.LastRefreshedAt = &formatted
	}
	return status, nil
}
