package storage

import (
	"errors"
	"sort"
	"time"

	"countrypulse/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a country name does not match any record.
var ErrNotFound = errors.New("country not found")

// Store is the keyed snapshot store for country records. The refresh service
// is its only writer; read methods are safe to call concurrently.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetByName looks up a single country, matching the name case-insensitively.
func (s *Store) GetByName(name string) (*models.Country, error) {
	var country models.Country
	err := s.db.Where("LOWER(name) = LOWER(?)", name).First(&country).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &country, nil
}

// List returns every stored country ordered by name.
func (s *Store) List() ([]models.Country, error) {
	var countries []models.Country
	if err := s.db.Order("name ASC").Find(&countries).Error; err != nil {
		return nil, err
	}
	return countries, nil
}

// ListByRegion filters by region, case-insensitively.
func (s *Store) ListByRegion(region string) ([]models.Country, error) {
	var countries []models.Country
	err := s.db.Where("LOWER(region) = LOWER(?)", region).Order("name ASC").Find(&countries).Error
	if err != nil {
		return nil, err
	}
	return countries, nil
}

// ListByCurrency filters by primary currency code, case-insensitively.
func (s *Store) ListByCurrency(code string) ([]models.Country, error) {
	var countries []models.Country
	err := s.db.Where("LOWER(currency_code) = LOWER(?)", code).Order("name ASC").Find(&countries).Error
	if err != nil {
		return nil, err
	}
	return countries, nil
}

// DeleteByName removes one country. Returns ErrNotFound when no record
// matches; the store is left untouched in that case.
func (s *Store) DeleteByName(name string) error {
	var country models.Country
	err := s.db.Where("LOWER(name) = LOWER(?)", name).First(&country).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return s.db.Delete(&country).Error
}

// Count returns the number of stored countries.
func (s *Store) Count() (int64, error) {
	var total int64
	if err := s.db.Model(&models.Country{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// LastRefreshTime returns the most recent LastRefreshedAt across all
// records, or the zero time when the store is empty. The lookup goes
// through the declared column rather than a raw MAX() aggregate; the
// sqlite driver hands aggregates back as text, which does not scan into
// a time.Time.
func (s *Store) LastRefreshTime() (time.Time, error) {
	var country models.Country
	err := s.db.Order("last_refreshed_at DESC").First(&country).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return country.LastRefreshedAt, nil
}

// TopByGdp returns the n highest records by estimated GDP. Ties keep the
// store's list order, so the sort runs in memory rather than in SQL.
func (s *Store) TopByGdp(n int) ([]models.Country, error) {
	countries, err := s.List()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(countries, func(i, j int) bool {
		return countries[i].EstimatedGdp > countries[j].EstimatedGdp
	})
	if len(countries) > n {
		countries = countries[:n]
	}
	return countries, nil
}

// UpsertAll merges one refresh cycle's candidates into the store inside a
// single transaction. Existing records are matched by case-insensitive name
// and updated in place (the stored key is preserved); new names are
// inserted. Records absent from the candidate set are not touched.
func (s *Store) UpsertAll(countries []models.Country) (int, error) {
	written := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, country := range countries {
			var existing models.Country
			err := tx.Where("LOWER(name) = LOWER(?)", country.Name).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&country).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				updates := map[string]interface{}{
					"capital":           country.Capital,
					"region":            country.Region,
					"population":        country.Population,
					"currency_code":     country.CurrencyCode,
					"exchange_rate":     country.ExchangeRate,
					"estimated_gdp":     country.EstimatedGdp,
					"flag_url":          country.FlagURL,
					"last_refreshed_at": country.LastRefreshedAt,
				}
				if err := tx.Model(&models.Country{}).Where("name = ?", existing.Name).Updates(updates).Error; err != nil {
					return err
				}
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}
