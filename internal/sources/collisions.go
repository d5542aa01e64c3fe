package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

const collisionsPageSize = 5000

// CollisionsSource fetches motor-vehicle collision reports from the NYC Open
// Data Socrata API (dataset h9gi-nx95). An app token raises the rate limit
// but is optional.
type CollisionsSource struct {
	name     string
	baseURL  string
	appToken string
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
}

func NewCollisionsSource(client *http.Client, appToken string) *CollisionsSource {
	return &CollisionsSource{
		name:     "nyc-open-data",
		baseURL:  "https://data.cityofnewyork.us/resource/h9gi-nx95.json",
		appToken: appToken,
		client:   client,
		circuit:  newBreaker("collisions"),
	}
}

func (s *CollisionsSource) Name() string {
	return s.name
}

// Fetch pages through all collision reports whose crash date falls inside the
// window. Pages are ordered by collision id so paging is stable while the
// upstream dataset grows.
func (s *CollisionsSource) Fetch(ctx context.Context, window common.Window) ([]dataset.RawRecord, error) {
	start, end := window.Format()
	where := fmt.Sprintf("crash_date between '%sT00:00:00' and '%sT23:59:59'", start, end)

	var records []dataset.RawRecord
	for offset := 0; ; offset += collisionsPageSize {
		page, err := s.fetchPage(ctx, where, offset)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
		if len(page) < collisionsPageSize {
			return records, nil
		}
	}
}

func (s *CollisionsSource) fetchPage(ctx context.Context, where string, offset int) ([]dataset.RawRecord, error) {
	values := url.Values{}
	values.Set("$where", where)
	values.Set("$order", "collision_id")
	values.Set("$limit", strconv.Itoa(collisionsPageSize))
	values.Set("$offset", strconv.Itoa(offset))

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", s.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if s.appToken != "" {
		req.Header.Set("X-App-Token", s.appToken)
	}

	resp, err := doRequest(ctx, s.client, s.circuit, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page []dataset.RawRecord
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return page, nil
}
