// Package care covers the non-session health features: a vitals check, the
// nearby hospital search and the history of past checks.
package care

// Vitals is a self-reported set of measurements for a health check.
// A blank SpO2 reading arrives as 0 and is not checked.
type Vitals struct {
	Age         *int    `json:"age" validate:"required,min=0,max=130"`
	Temperature float64 `json:"temperature" validate:"required,min=25,max=45"`
	HeartRate   int     `json:"heart_rate" validate:"required,min=20,max=250"`
	BPSys       *int    `json:"bp_sys,omitempty" validate:"omitempty,min=50,max=260"`
	BPDia       *int    `json:"bp_dia,omitempty" validate:"omitempty,min=30,max=200"`
	SpO2        int     `json:"spo2,omitempty" validate:"omitempty,min=50,max=100"`
	Symptoms    string  `json:"symptoms,omitempty" validate:"max=1000"`
}

// HealthReport is the backend's assessment of a set of vitals.
type HealthReport struct {
	Score     int      `json:"score"`
	Status    string   `json:"status"`
	Advice    []string `json:"advice"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// Hospital is a nearby facility. Distance is display text; DistanceKm is set
// when the distance was computed from coordinates.
type Hospital struct {
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Phone        string   `json:"phone,omitempty"`
	Lat          float64  `json:"lat,omitempty"`
	Lon          float64  `json:"lon,omitempty"`
	Distance     string   `json:"distance,omitempty"`
	DistanceKm   float64  `json:"distance_km,omitempty"`
	Rating       float64  `json:"rating,omitempty"`
	IsOpen       *bool    `json:"is_open,omitempty"`
	OpeningHours []string `json:"opening_hours,omitempty"`
}

// HistoryRecord is one past health check.
type HistoryRecord struct {
	ID          int     `json:"id,omitempty"`
	Date        string  `json:"date"`
	Status      string  `json:"status"`
	Score       int     `json:"score"`
	Temperature float64 `json:"temperature"`
	HeartRate   int     `json:"heart_rate"`
	SpO2        int     `json:"spo2"`
	Symptoms    string  `json:"symptoms,omitempty"`
	Age         *int    `json:"age,omitempty"`
	BPSys       *int    `json:"bp_sys,omitempty"`
	BPDia       *int    `json:"bp_dia,omitempty"`
}
