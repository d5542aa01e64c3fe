package common

import "time"

// Window is a closed date range a fetch source is asked to cover.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingWindow returns a window covering the last `days` complete days
// ending yesterday, relative to now. Yesterday is the most recent day the
// upstream sources have fully published.
func TrailingWindow(days int, now time.Time) Window {
	end := now.UTC().AddDate(0, 0, -1)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return Window{
		Start: end.AddDate(0, 0, -(days - 1)),
		End:   end,
	}
}

// Format renders boundaries in the YYYY-MM-DD form the upstream APIs expect.
func (w Window) Format() (start, end string) {
	return w.Start.Format("2006-01-02"), w.End.Format("2006-01-02")
}
