package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/sony/gobreaker"

	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

// OpenMeteoSource fetches hourly historical weather per NYC borough from the
// Open-Meteo archive API. No API key is required.
type OpenMeteoSource struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoSource(client *http.Client) *OpenMeteoSource {
	return &OpenMeteoSource{
		name:    "openmeteo-archive",
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
		client:  client,
		circuit: newBreaker("openmeteo"),
	}
}

func (s *OpenMeteoSource) Name() string {
	return s.name
}

// Fetch requests the window's hourly readings for every borough and flattens
// them into raw records carrying the borough name alongside each reading.
func (s *OpenMeteoSource) Fetch(ctx context.Context, window common.Window) ([]dataset.RawRecord, error) {
	boroughs := make([]string, 0, len(dataset.Boroughs))
	for b := range dataset.Boroughs {
		boroughs = append(boroughs, b)
	}
	sort.Strings(boroughs)

	var records []dataset.RawRecord
	for _, borough := range boroughs {
		recs, err := s.fetchBorough(ctx, borough, window)
		if err != nil {
			return nil, fmt.Errorf("borough %s: %w", borough, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (s *OpenMeteoSource) fetchBorough(ctx context.Context, borough string, window common.Window) ([]dataset.RawRecord, error) {
	coords := dataset.Boroughs[borough]
	start, end := window.Format()

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', 4, 64))
	values.Set("start_date", start)
	values.Set("end_date", end)
	values.Set("hourly", "temperature_2m,precipitation,rain,showers,snowfall,wind_speed_10m,visibility")
	values.Set("timezone", "UTC")

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", s.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := doRequest(ctx, s.client, s.circuit, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly struct {
			Time          []string  `json:"time"`
			Temperature2M []float64 `json:"temperature_2m"`
			Precipitation []float64 `json:"precipitation"`
			Rain          []float64 `json:"rain"`
			Showers       []float64 `json:"showers"`
			Snowfall      []float64 `json:"snowfall"`
			WindSpeed10M  []float64 `json:"wind_speed_10m"`
			Visibility    []float64 `json:"visibility"`
		} `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	h := payload.Hourly
	records := make([]dataset.RawRecord, 0, len(h.Time))
	for i, ts := range h.Time {
		rec := dataset.RawRecord{
			"borough": borough,
			"time":    ts,
		}
		setAt(rec, "temperature_2m", h.Temperature2M, i)
		setAt(rec, "precipitation", h.Precipitation, i)
		setAt(rec, "rain", h.Rain, i)
		setAt(rec, "showers", h.Showers, i)
		setAt(rec, "snowfall", h.Snowfall, i)
		setAt(rec, "wind_speed_10m", h.WindSpeed10M, i)
		setAt(rec, "visibility", h.Visibility, i)
		records = append(records, rec)
	}
	return records, nil
}

// setAt guards against the API returning shorter series for some variables.
func setAt(rec dataset.RawRecord, name string, series []float64, i int) {
	if i < len(series) {
		rec[name] = series[i]
	}
}
