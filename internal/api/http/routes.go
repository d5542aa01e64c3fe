package httpapi

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
	"github.com/i474232898/traffic-safety-pipeline/internal/pipeline"
	"github.com/i474232898/traffic-safety-pipeline/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the read-only dataset API into the Fiber app. It reads
// committed masters only; it never mutates them.
func RegisterRoutes(app *fiber.App, st store.Store, schemas map[string]dataset.Schema, p *pipeline.Pipeline) {
	v1 := app.Group("/api/v1")

	v1.Get("/datasets/:kind/summary", func(c *fiber.Ctx) error {
		schema, ok := schemas[c.Params("kind")]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown dataset kind")
		}

		ds, err := st.Load(schema)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load dataset")
		}
		if ds.Len() == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no committed data for dataset")
		}

		return c.JSON(summarize(ds))
	})

	v1.Get("/datasets/:kind/records", func(c *fiber.Ctx) error {
		schema, ok := schemas[c.Params("kind")]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown dataset kind")
		}

		var req recordsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ds, err := st.Load(schema)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load dataset")
		}

		records := selectWindow(ds, req.From, req.To, req.Limit)
		return c.JSON(fiber.Map{
			"kind":    schema.Kind,
			"from":    req.From,
			"to":      req.To,
			"count":   len(records),
			"records": records,
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		report, ok := p.LastReport()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no pipeline run has completed yet")
		}
		return c.JSON(report)
	})
}

// summary describes one committed master dataset.
type summary struct {
	Kind      string         `json:"kind"`
	Records   int            `json:"records"`
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	ByBorough map[string]int `json:"byBorough,omitempty"`
}

func summarize(ds *dataset.Dataset) summary {
	s := summary{
		Kind:    ds.Schema.Kind,
		Records: ds.Len(),
	}

	hasBorough := hasField(ds.Schema, "borough")
	if hasBorough {
		s.ByBorough = make(map[string]int)
	}

	for _, rec := range ds.Records() {
		if ts, err := time.Parse(time.RFC3339, rec.Fields[ds.Schema.TimeField]); err == nil {
			if s.From.IsZero() || ts.Before(s.From) {
				s.From = ts
			}
			if ts.After(s.To) {
				s.To = ts
			}
		}
		if hasBorough {
			s.ByBorough[rec.Fields["borough"]]++
		}
	}
	return s
}

func hasField(schema dataset.Schema, name string) bool {
	for _, n := range schema.FieldNames() {
		if n == name {
			return true
		}
	}
	return false
}

func selectWindow(ds *dataset.Dataset, from, to time.Time, limit int) []map[string]string {
	type timed struct {
		ts     time.Time
		fields map[string]string
	}

	var matched []timed
	for _, rec := range ds.Records() {
		ts, err := time.Parse(time.RFC3339, rec.Fields[ds.Schema.TimeField])
		if err != nil {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}
		matched = append(matched, timed{ts: ts, fields: rec.Fields})
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ts.Before(matched[j].ts) })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]map[string]string, len(matched))
	for i, m := range matched {
		out[i] = m.fields
	}
	return out
}

// recordsQuery holds query parameters for the records endpoint.
type recordsQuery struct {
	From  time.Time `validate:"required"`
	To    time.Time `validate:"required,gtefield=From"`
	Limit int       `validate:"min=1,max=10000"`
}

func (q *recordsQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to

	q.Limit = 1000
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return errors.New("invalid limit; must be an integer")
		}
		q.Limit = limit
	}
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD, or unix seconds")
}
