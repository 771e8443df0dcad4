package features

// EnergyPoint is one sample of the energy curve.
type EnergyPoint struct {
	Time   float64 `json:"time"`
	Energy float64 `json:"energy"`
}

// NoteEvent is a detected (or generated) pitch event.
type NoteEvent struct {
	Time float64 `json:"time"`
	Note string  `json:"note"`
}

// FeatureSet is the structured numeric description of one track: beats,
// onsets, an energy curve and note events, plus basic metadata.
//
// Invariants: all time series are ascending and bounded by Duration.
// Degraded marks synthetically generated data; consumers propagate the flag
// and never upgrade it.
type FeatureSet struct {
	Filename      string        `json:"filename"`
	Duration      float64       `json:"duration"`
	Tempo         float64       `json:"tempo"`
	SampleRate    int           `json:"sample_rate"`
	Degraded      bool          `json:"degraded,omitempty"`
	BeatTimes     []float64     `json:"beats"`
	OnsetTimes    []float64     `json:"onsets"`
	EnergyProfile []EnergyPoint `json:"energy_profile"`
	Notes         []NoteEvent   `json:"notes"`
}
