package dataset

// Outcome reports what a single merge did. It carries no side effects.
type Outcome struct {
	Appended int `json:"appended"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Size     int `json:"size"`
}

// Merge combines an incoming canonical batch with an existing dataset by
// identity key and returns a new dataset plus an outcome report. Neither
// input is mutated.
//
// Conflict policy is last-write-wins: when an incoming record carries a key
// already present with differing field values, the incoming record replaces
// the stored one. The most recently fetched value for an identity is assumed
// more authoritative (corrected readings, finalized collision reports).
//
// The result size always equals existing.Len() plus the appended count:
// updates and skipped duplicates never change the size.
func Merge(existing *Dataset, incoming []Record) (*Dataset, Outcome) {
	result := existing.clone()
	var out Outcome

	for _, rec := range incoming {
		prev, ok := result.Get(rec.Key)
		switch {
		case !ok:
			result.Put(rec)
			out.Appended++
		case prev.Equal(rec):
			// Common case on re-runs over overlapping windows.
			out.Skipped++
		default:
			result.Put(rec)
			out.Updated++
		}
	}

	out.Size = result.Len()
	return result, out
}
