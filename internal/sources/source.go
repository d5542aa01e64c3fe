package sources

import (
	"context"
	"errors"

	"github.com/i474232898/traffic-safety-pipeline/internal/common"
	"github.com/i474232898/traffic-safety-pipeline/internal/dataset"
)

// ErrTransient marks a fetch failure worth retrying: network errors, rate
// limiting, upstream server errors. Failures not wrapping it are permanent
// and must not be retried.
var ErrTransient = errors.New("transient fetch failure")

// Source abstracts one upstream data source (Open-Meteo, NYC Open Data).
// Fetch returns the raw records published for the window.
type Source interface {
	Name() string
	Fetch(ctx context.Context, window common.Window) ([]dataset.RawRecord, error)
}
