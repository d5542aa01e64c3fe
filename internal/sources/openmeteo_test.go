package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

func testWindow() common.Window {
	return common.TrailingWindow(2, time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC))
}

func TestOpenMeteoFetchFlattensHourlySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_date") != "2024-01-02" || q.Get("end_date") != "2024-01-03" {
			t.Errorf("unexpected window: %s to %s", q.Get("start_date"), q.Get("end_date"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hourly": map[string]any{
				"time":           []string{"2024-01-02T00:00", "2024-01-02T01:00"},
				"temperature_2m": []float64{1.5, 1.2},
				"precipitation":  []float64{0, 0.4},
				"rain":           []float64{0, 0.4},
				"showers":        []float64{0, 0},
				"snowfall":       []float64{0, 0},
				"wind_speed_10m": []float64{12, 14},
				"visibility":     []float64{24000, 18000},
			},
		})
	}))
	defer srv.Close()

	src := NewOpenMeteoSource(srv.Client())
	src.baseURL = srv.URL

	records, err := src.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	// Two hours for each of the five boroughs.
	if want := 2 * len(dataset.Boroughs); len(records) != want {
		t.Fatalf("expected %d records, got %d", want, len(records))
	}

	rec := records[0]
	if rec["borough"] == nil || rec["time"] == nil {
		t.Fatalf("record missing borough or time: %v", rec)
	}
	if _, ok := rec["temperature_2m"].(float64); !ok {
		t.Fatalf("temperature_2m missing or wrong type: %v", rec["temperature_2m"])
	}
}

func TestCollisionsFetchSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("$order") != "collision_id" {
			t.Errorf("expected stable ordering, got %q", q.Get("$order"))
		}
		if r.Header.Get("X-App-Token") != "token123" {
			t.Errorf("expected app token header")
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"collision_id": "1", "crash_date": "2024-01-02T00:00:00.000", "crash_time": "8:15"},
			{"collision_id": "2", "crash_date": "2024-01-03T00:00:00.000", "crash_time": "17:40"},
		})
	}))
	defer srv.Close()

	src := NewCollisionsSource(srv.Client(), "token123")
	src.baseURL = srv.URL

	records, err := src.Fetch(context.Background(), testWindow())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0]["collision_id"] != "1" {
		t.Fatalf("unexpected first record: %v", records[0])
	}
}
