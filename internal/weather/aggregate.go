package weather

// Fallbacks used when a snapshot is structurally present but lacks a field.
const (
	DefaultTemperatureC = 25.0
	DefaultRainfallMm   = 100.0
	ForecastWindowDays  = 7
)

// Signals are the two weather inputs the crop scorer consumes.
type Signals struct {
	TemperatureC float64
	RainfallMm   float64
}

// DeriveSignals reduces a snapshot to current temperature and aggregate
// near-term rainfall.
//
// Temperature falls back to DefaultTemperatureC only when the snapshot has no
// current reading. Rainfall is the sum of the first ForecastWindowDays daily
// entries (fewer if fewer are present, zero for an empty forecast) and falls
// back to DefaultRainfallMm only when the daily forecast is absent.
func DeriveSignals(s Snapshot) Signals {
	sig := Signals{
		TemperatureC: DefaultTemperatureC,
		RainfallMm:   DefaultRainfallMm,
	}

	if s.CurrentTemp != nil {
		sig.TemperatureC = *s.CurrentTemp
	}

	if s.DailyRainfall != nil {
		days := s.DailyRainfall
		if len(days) > ForecastWindowDays {
			days = days[:ForecastWindowDays]
		}
		var sum float64
		for _, mm := range days {
			sum += mm
		}
		sig.RainfallMm = sum
	}

	return sig
}
