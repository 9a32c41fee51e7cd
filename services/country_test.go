package services_test

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"countrypulse/models"
	"countrypulse/services"
	"countrypulse/storage"

	. "github.com/smartystreets/goconvey/convey"
)

// upstream is a mutable stub feed endpoint.
type upstream struct {
	mu     sync.Mutex
	status int
	body   string
}

func (u *upstream) set(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
	u.body = body
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status != 0 && u.status != http.StatusOK {
		w.WriteHeader(u.status)
		return
	}
	w.Write([]byte(u.body))
}

type pipeline struct {
	store     *storage.Store
	summary   *services.SummaryService
	countries *upstream
	rates     *upstream
	cacheDir  string

	countriesSrv *httptest.Server
	ratesSrv     *httptest.Server
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	p := &pipeline{
		store:     newTestStore(t),
		countries: &upstream{body: `[]`},
		rates:     &upstream{body: `{"rates": {}}`},
		cacheDir:  t.TempDir(),
	}
	p.countriesSrv = httptest.NewServer(p.countries)
	p.ratesSrv = httptest.NewServer(p.rates)
	t.Cleanup(p.countriesSrv.Close)
	t.Cleanup(p.ratesSrv.Close)

	summary, err := services.NewSummaryService(p.store, p.cacheDir)
	if err != nil {
		t.Fatalf("failed to create summary service: %v", err)
	}
	p.summary = summary
	return p
}

// service builds a CountryService over the pipeline with a fresh seeded
// random source, so repeated cycles can be made to draw identical
// multipliers.
func (p *pipeline) service(seed int64) *services.CountryService {
	source := services.NewSourceClient(p.countriesSrv.URL, p.ratesSrv.URL, 5*time.Second)
	calculator := services.NewCalculator(rand.New(rand.NewSource(seed)))
	return services.NewCountryService(p.store, source, calculator, p.summary)
}

func TestRefreshScenario(t *testing.T) {
	Convey("Given one country and a matching rate", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1000, "currencies": {"ABC": {}}}]`)
		p.rates.set(200, `{"rates": {"ABC": 2.0}}`)

		before := time.Now().UTC().Add(-time.Second)
		written, err := p.service(1).Refresh(context.Background())

		Convey("Then the record lands in the store with a bounded estimate", func() {
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 1)

			got, err := p.store.GetByName("Alpha")
			So(err, ShouldBeNil)
			So(*got.CurrencyCode, ShouldEqual, "ABC")
			So(*got.ExchangeRate, ShouldEqual, 2.0)
			So(got.EstimatedGdp, ShouldBeGreaterThanOrEqualTo, 500000.0)
			So(got.EstimatedGdp, ShouldBeLessThan, 1000000.0)
			So(got.LastRefreshedAt.After(before), ShouldBeTrue)
		})

		Convey("And the summary image is regenerated synchronously", func() {
			So(err, ShouldBeNil)
			info, statErr := os.Stat(filepath.Join(p.cacheDir, "summary.png"))
			So(statErr, ShouldBeNil)
			So(info.Size(), ShouldBeGreaterThan, 0)
		})
	})
}

func TestRefreshExclusions(t *testing.T) {
	Convey("Given a record with no currencies", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1000}]`)
		p.rates.set(200, `{"rates": {"ABC": 2.0}}`)

		written, err := p.service(1).Refresh(context.Background())

		Convey("Then the record sits out the cycle entirely", func() {
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 0)
			total, err := p.store.Count()
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 0)
		})
	})

	Convey("Given a currency with no matching rate", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1000, "currencies": {"XYZ": {}}}]`)
		p.rates.set(200, `{"rates": {"ABC": 2.0}}`)

		written, err := p.service(1).Refresh(context.Background())

		Convey("Then the record is excluded, not zeroed", func() {
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 0)
			_, err := p.store.GetByName("Alpha")
			So(err, ShouldEqual, storage.ErrNotFound)
		})
	})

	Convey("Given a record with a blank name", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "  "}, "population": 5, "currencies": {"ABC": {}}}]`)
		p.rates.set(200, `{"rates": {"ABC": 1.0}}`)

		written, err := p.service(1).Refresh(context.Background())

		Convey("Then it is skipped without failing the cycle", func() {
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 0)
		})
	})

	Convey("Given a rate of exactly zero", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1000, "currencies": {"ABC": {}}}]`)
		p.rates.set(200, `{"rates": {"ABC": 0}}`)

		written, err := p.service(1).Refresh(context.Background())

		Convey("Then the record is kept with a zero estimate", func() {
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 1)
			got, err := p.store.GetByName("Alpha")
			So(err, ShouldBeNil)
			So(got.EstimatedGdp, ShouldEqual, 0)
		})
	})
}

func TestRefreshMergeSemantics(t *testing.T) {
	Convey("Given a store populated by a first cycle", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[
			{"name": {"common": "Alpha"}, "population": 1000, "currencies": {"ABC": {}}},
			{"name": {"common": "Beta"}, "population": 2000, "currencies": {"ABC": {}}}
		]`)
		p.rates.set(200, `{"rates": {"ABC": 2.0}}`)

		_, err := p.service(1).Refresh(context.Background())
		So(err, ShouldBeNil)

		betaBefore, err := p.store.GetByName("Beta")
		So(err, ShouldBeNil)

		Convey("When a later cycle no longer lists Beta", func() {
			p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1500, "currencies": {"ABC": {}}}]`)
			written, err := p.service(2).Refresh(context.Background())
			So(err, ShouldBeNil)
			So(written, ShouldEqual, 1)

			Convey("Then Beta survives unchanged", func() {
				betaAfter, err := p.store.GetByName("Beta")
				So(err, ShouldBeNil)
				So(betaAfter.EstimatedGdp, ShouldEqual, betaBefore.EstimatedGdp)
				So(betaAfter.LastRefreshedAt.Equal(betaBefore.LastRefreshedAt), ShouldBeTrue)
			})

			Convey("And Alpha was updated in place", func() {
				alpha, err := p.store.GetByName("Alpha")
				So(err, ShouldBeNil)
				So(*alpha.Population, ShouldEqual, 1500)
				total, err := p.store.Count()
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a raw name with a comma", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "Alpha, Territory of"}, "population": 10, "currencies": {"ABC": {}}}]`)
		p.rates.set(200, `{"rates": {"ABC": 1.0}}`)

		Convey("Repeated refreshes key to one record named by the prefix", func() {
			_, err := p.service(1).Refresh(context.Background())
			So(err, ShouldBeNil)
			_, err = p.service(2).Refresh(context.Background())
			So(err, ShouldBeNil)

			total, err := p.store.Count()
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 1)

			got, err := p.store.GetByName("Alpha")
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Alpha")
		})
	})
}

func TestRefreshIdempotence(t *testing.T) {
	Convey("Given identical payloads and a fixed random seed", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[
			{"name": {"common": "Alpha"}, "population": 1000, "currencies": {"ABC": {}}},
			{"name": {"common": "Beta"}, "population": 2000, "currencies": {"DEF": {}}}
		]`)
		p.rates.set(200, `{"rates": {"ABC": 2.0, "DEF": 4.0}}`)

		_, err := p.service(99).Refresh(context.Background())
		So(err, ShouldBeNil)
		first, err := p.store.List()
		So(err, ShouldBeNil)

		_, err = p.service(99).Refresh(context.Background())
		So(err, ShouldBeNil)
		second, err := p.store.List()
		So(err, ShouldBeNil)

		Convey("Then store content matches except the refresh timestamps", func() {
			So(len(second), ShouldEqual, len(first))
			for i := range first {
				So(second[i].Name, ShouldEqual, first[i].Name)
				So(*second[i].Population, ShouldEqual, *first[i].Population)
				So(*second[i].CurrencyCode, ShouldEqual, *first[i].CurrencyCode)
				So(*second[i].ExchangeRate, ShouldEqual, *first[i].ExchangeRate)
				So(second[i].EstimatedGdp, ShouldEqual, first[i].EstimatedGdp)
			}
		})
	})
}

func TestRefreshFailures(t *testing.T) {
	Convey("Given a store populated by a successful cycle", t, func() {
		p := newPipeline(t)
		p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1000, "currencies": {"ABC": {}}}]`)
		p.rates.set(200, `{"rates": {"ABC": 2.0}}`)
		_, err := p.service(1).Refresh(context.Background())
		So(err, ShouldBeNil)

		before, err := p.store.List()
		So(err, ShouldBeNil)

		Convey("When the country catalog starts failing", func() {
			p.countries.set(http.StatusInternalServerError, "")
			_, err := p.service(2).Refresh(context.Background())

			Convey("Then the refresh aborts with a FetchError and the store is untouched", func() {
				var fetchErr *services.FetchError
				So(errors.As(err, &fetchErr), ShouldBeTrue)
				So(fetchErr.Source, ShouldEqual, services.SourceCountries)

				after, err := p.store.List()
				So(err, ShouldBeNil)
				So(after, ShouldResemble, before)
			})
		})

		Convey("When only the rates feed fails", func() {
			p.rates.set(http.StatusInternalServerError, "")
			written, err := p.service(2).Refresh(context.Background())

			Convey("Then the cycle completes with every record excluded", func() {
				So(err, ShouldBeNil)
				So(written, ShouldEqual, 0)

				after, err := p.store.List()
				So(err, ShouldBeNil)
				So(after, ShouldResemble, before)
			})
		})
	})
}

func TestStatus(t *testing.T) {
	Convey("Given an empty store", t, func() {
		p := newPipeline(t)
		svc := p.service(1)

		Convey("Status reports zero and a null timestamp", func() {
			status, err := svc.Status()
			So(err, ShouldBeNil)
			So(status.TotalCountries, ShouldEqual, 0)
			So(status.LastRefreshedAt, ShouldBeNil)
		})

		Convey("After a refresh it reports the count and a recent timestamp", func() {
			p.countries.set(200, `[{"name": {"common": "Alpha"}, "population": 1, "currencies": {"ABC": {}}}]`)
			p.rates.set(200, `{"rates": {"ABC": 1.0}}`)

			before := time.Now().UTC().Add(-time.Second)
			_, err := svc.Refresh(context.Background())
			So(err, ShouldBeNil)

			status, err := svc.Status()
			So(err, ShouldBeNil)
			So(status.TotalCountries, ShouldEqual, 1)
			So(status.LastRefreshedAt, ShouldNotBeNil)

			parsed, err := time.Parse(time.RFC3339, *status.LastRefreshedAt)
			So(err, ShouldBeNil)
			So(parsed.After(before), ShouldBeTrue)
			So(parsed.Before(time.Now().UTC().Add(time.Second)), ShouldBeTrue)
		})
	})
}

func TestListCountriesSorting(t *testing.T) {
	Convey("Given a store with known GDP and population values", t, func() {
		p := newPipeline(t)
		records := []models.Country{
			{Name: "A", Population: intPtr(50), EstimatedGdp: 10, Region: strPtr("Europe"), CurrencyCode: strPtr("EUR"), LastRefreshedAt: time.Now().UTC()},
			{Name: "B", Population: intPtr(10), EstimatedGdp: 30, Region: strPtr("Europe"), CurrencyCode: strPtr("EUR"), LastRefreshedAt: time.Now().UTC()},
			{Name: "C", Population: intPtr(30), EstimatedGdp: 20, Region: strPtr("Asia"), CurrencyCode: strPtr("JPY"), LastRefreshedAt: time.Now().UTC()},
		}
		_, err := p.store.UpsertAll(records)
		So(err, ShouldBeNil)
		svc := p.service(1)

		Convey("gdp_desc orders high to low", func() {
			got, err := svc.ListCountries("", "", "gdp_desc")
			So(err, ShouldBeNil)
			So(gdps(got), ShouldResemble, []float64{30, 20, 10})
		})

		Convey("gdp_asc orders low to high", func() {
			got, err := svc.ListCountries("", "", "gdp_asc")
			So(err, ShouldBeNil)
			So(gdps(got), ShouldResemble, []float64{10, 20, 30})
		})

		Convey("population_asc orders by population", func() {
			got, err := svc.ListCountries("", "", "population_asc")
			So(err, ShouldBeNil)
			So(populations(got), ShouldResemble, []int64{10, 30, 50})
		})

		Convey("population_desc orders by population descending", func() {
			got, err := svc.ListCountries("", "", "population_desc")
			So(err, ShouldBeNil)
			So(populations(got), ShouldResemble, []int64{50, 30, 10})
		})

		Convey("Region filters are case-insensitive", func() {
			upper, err := svc.ListCountries("Europe", "", "")
			So(err, ShouldBeNil)
			lower, err := svc.ListCountries("europe", "", "")
			So(err, ShouldBeNil)
			So(len(upper), ShouldEqual, 2)
			So(upper, ShouldResemble, lower)
		})

		Convey("Currency filter narrows to matching records", func() {
			got, err := svc.ListCountries("", "jpy", "")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 1)
			So(got[0].Name, ShouldEqual, "C")
		})

		Convey("An unknown sort key leaves the listing order alone", func() {
			got, err := svc.ListCountries("", "", "sideways")
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 3)
			So(got[0].Name, ShouldEqual, "A")
		})
	})
}

func gdps(countries []models.Country) []float64 {
	out := make([]float64, len(countries))
	for i, c := range countries {
		out[i] = c.EstimatedGdp
	}
	return out
}

func populations(countries []models.Country) []int64 {
	out := make([]int64, len(countries))
	for i, c := range countries {
		if c.Population != nil {
			out[i] = *c.Population
		}
	}
	return out
}
