package weather

import (
	"strconv"
	"time"
)

// Coordinates identifies the point a weather snapshot was fetched for.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns a canonical string key for indexing these coordinates in caches.
// Values are rounded to four decimal places (about 11 m) so requests for the
// same field share an entry.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + ":" + strconv.FormatFloat(c.Lon, 'f', 4, 64)
}

// Snapshot is the normalized weather view used by the advisory engine.
//
// CurrentTemp is nil when the provider response carried no current temperature.
// DailyRainfall is nil when the response had no daily forecast at all, and an
// empty slice when the forecast was present but had no days.
type Snapshot struct {
	Coordinates   Coordinates `json:"coordinates"`
	FetchedAt     time.Time   `json:"fetchedAt"` // always UTC
	Provider      string      `json:"provider"`
	CurrentTemp   *float64    `json:"currentTempC"`
	DailyRainfall []float64   `json:"dailyRainfallMm"`
}
