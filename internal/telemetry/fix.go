package telemetry

// Fix is a single position/velocity sample from the location source. A fix is
// produced fresh on every poll and never merged with a previous one.
type Fix struct {
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"` // meters above mean sea level
	Speed     float64 `json:"speed"`    // meters per second over ground
	Timestamp string  `json:"timestamp"`

	// Present is false when no valid fix was available. A non-present fix
	// must never be serialized to a peer.
	Present bool `json:"-"`
}

// NewFix returns a present fix with the wire type set.
func NewFix(lat, lon, alt, speed float64, timestamp string) Fix {
	return Fix{
		Type:      "gps",
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
		Speed:     speed,
		Timestamp: timestamp,
		Present:   true,
	}
}

// Source supplies periodic position fixes. Implementations never return
// errors; any internal failure is reported as a non-present fix.
type Source interface {
	NextFix() Fix
}
