package inaturalist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	fferrors "github.com/fireflymap/api/pkg/errors"
)

const (
	DefaultPerPage = 50
	MaxPerPage     = 200

	taxonTTL = 24 * time.Hour
)

// TaxonCache stores resolved taxon ids between requests.
type TaxonCache interface {
	GetTaxonID(ctx context.Context, name string) (int, bool, error)
	SetTaxonID(ctx context.Context, name string, id int, ttl time.Duration) error
}

type Client struct {
	baseURL   string
	taxonName string
	http      *http.Client
	cache     TaxonCache
	breaker   *gobreaker.CircuitBreaker[[]byte]
}

// New returns a client for the API rooted at baseURL (for example
// https://api.inaturalist.org/v1). A nil httpClient gets a 10s timeout.
func New(baseURL, taxonName string, httpClient *http.Client, cache TaxonCache) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "inaturalist",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a caller hanging up says nothing about the upstream
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		taxonName: taxonName,
		http:      httpClient,
		cache:     cache,
		breaker:   breaker,
	}
}

func (c *Client) TaxonName() string {
	return c.taxonName
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		b, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
		if err != nil {
			return nil, err
		}

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s responded with status %d", path, res.StatusCode)
		}

		return b, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fferrors.ErrUnavailable, err)
	}

	return body, nil
}

type taxaResponse struct {
	Results []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		Rank string `json:"rank"`
	} `json:"results"`
}

// ResolveTaxonID looks up the configured taxon name, preferring the cache.
func (c *Client) ResolveTaxonID(ctx context.Context) (int, error) {
	if c.cache != nil {
		id, ok, err := c.cache.GetTaxonID(ctx, c.taxonName)
		if err != nil {
			log.Warn().Err(err).Msg("taxon cache lookup failed, asking the API")
		} else if ok {
			return id, nil
		}
	}

	b, err := c.get(ctx, "/taxa", url.Values{
		"q":        {c.taxonName},
		"per_page": {"10"},
	})
	if err != nil {
		return 0, err
	}

	var resp taxaResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return 0, fmt.Errorf("%w: decode taxa: %v", fferrors.ErrUnavailable, err)
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("%w: no taxon named %q", fferrors.ErrUnavailable, c.taxonName)
	}

	id := resp.Results[0].ID
	for _, r := range resp.Results {
		if strings.EqualFold(r.Name, c.taxonName) {
			id = r.ID
			break
		}
	}

	if c.cache != nil {
		if err := c.cache.SetTaxonID(ctx, c.taxonName, id, taxonTTL); err != nil {
			log.Warn().Err(err).Int("taxon_id", id).Msg("failed to cache taxon id")
		}
	}

	return id, nil
}

type Query struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
	PerPage  int
}

type Observation struct {
	ID         int     `json:"id"`
	ObservedOn string  `json:"observed_on"`
	PlaceGuess string  `json:"place_guess"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TaxonName  string  `json:"taxon_name"`
	CommonName string  `json:"common_name"`
	User       string  `json:"user"`
	PhotoURL   string  `json:"photo_url"`
	URI        string  `json:"uri"`
}

type observationsResponse struct {
	Results []struct {
		ID         int    `json:"id"`
		ObservedOn string `json:"observed_on"`
		PlaceGuess string `json:"place_guess"`
		Location   string `json:"location"`
		URI        string `json:"uri"`
		Taxon      *struct {
			Name                string `json:"name"`
			PreferredCommonName string `json:"preferred_common_name"`
		} `json:"taxon"`
		User *struct {
			Login string `json:"login"`
		} `json:"user"`
		Photos []struct {
			URL string `json:"url"`
		} `json:"photos"`
	} `json:"results"`
}

// parseLocation reads the API's "lat,lng" location string.
func parseLocation(s string) (float64, float64, bool) {
	latStr, lngStr, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// Observations returns public observations of the configured taxon near q.
// Results without coordinates are dropped.
func (c *Client) Observations(ctx context.Context, q Query) ([]Observation, error) {
	taxonID, err := c.ResolveTaxonID(ctx)
	if err != nil {
		return nil, err
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	b, err := c.get(ctx, "/observations", url.Values{
		"taxon_id": {strconv.Itoa(taxonID)},
		"lat":      {strconv.FormatFloat(q.Lat, 'f', -1, 64)},
		"lng":      {strconv.FormatFloat(q.Lng, 'f', -1, 64)},
		"radius":   {strconv.FormatFloat(q.RadiusKm, 'f', -1, 64)},
		"per_page": {strconv.Itoa(perPage)},
		"order":    {"desc"},
		"order_by": {"observed_on"},
	})
	if err != nil {
		return nil, err
	}

	var resp observationsResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode observations: %v", fferrors.ErrUnavailable, err)
	}

	out := make([]Observation, 0, len(resp.Results))
	for _, r := range resp.Results {
		lat, lng, ok := parseLocation(r.Location)
		if !ok {
			continue
		}

		o := Observation{
			ID:         r.ID,
			ObservedOn: r.ObservedOn,
			PlaceGuess: r.PlaceGuess,
			Latitude:   lat,
			Longitude:  lng,
			URI:        r.URI,
		}
		if r.Taxon != nil {
			o.TaxonName = r.Taxon.Name
			o.CommonName = r.Taxon.PreferredCommonName
		}
		if r.User != nil {
			o.User = r.User.Login
		}
		if len(r.Photos) > 0 {
			o.PhotoURL = r.Photos[0].URL
		}

		out = append(out, o)
	}

	return out, nil
}
