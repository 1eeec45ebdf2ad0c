package weather

import (
	"encoding/json"
	"fmt"
)

// SourceID selects which data source a request should be served from.
type SourceID int

const (
	SourceWeatherAPI     SourceID = 1
	SourceOpenWeatherMap SourceID = 2
	SourceLocalFile      SourceID = 3
)

// AllSources lists every recognized source in identifier order.
var AllSources = []SourceID{SourceWeatherAPI, SourceOpenWeatherMap, SourceLocalFile}

// Valid reports whether id belongs to the recognized set.
func (id SourceID) Valid() bool {
	return id >= SourceWeatherAPI && id <= SourceLocalFile
}

// Key returns the result key under which this source's records are stored.
func (id SourceID) Key() string {
	return fmt.Sprintf("source_%d_result", int(id))
}

// Record is the normalized weather view shared by all sources.
// Temperature and Description are nil when the source reported no value.
type Record struct {
	City        string   `json:"city"`
	Temperature *float64 `json:"temperature"`
	Description *string  `json:"description"`
}

// NewRecord is a convenience constructor for fully populated records.
func NewRecord(city string, temperature float64, description string) Record {
	return Record{
		City:        city,
		Temperature: &temperature,
		Description: &description,
	}
}

// Warning messages returned for invalid aggregation input.
const (
	WarnNoCities       = "no cities were provided"
	WarnNoSources      = "no data sources were provided"
	WarnInvalidSources = "no valid data sources were provided"
)

// Result is the outcome of one aggregation call: either a warning about the
// input, or a mapping from source key to that source's records.
type Result struct {
	Warning string
	Sources map[string][]Record
}

// HasWarning reports whether the input was rejected.
func (r Result) HasWarning() bool {
	return r.Warning != ""
}

// MarshalJSON encodes a warning result as {"warning": ...} and anything else
// as the plain source map.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.HasWarning() {
		return json.Marshal(map[string]string{"warning": r.Warning})
	}
	if r.Sources == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Sources)
}
