package hermes

import "time"

type WeightsChangedEvent struct {
	ChangeID      string             `json:"change_id"`
	Sector        string             `json:"sector"`
	PreviousValue float64            `json:"previous_value"`
	NewValue      float64            `json:"new_value"`
	ChangedBy     string             `json:"changed_by,omitempty"`
	Weights       map[string]float64 `json:"weights"`
	PulseScore    float64            `json:"pulse_score"`
	Timestamp     time.Time          `json:"timestamp"`
}

type WeightsResetEvent struct {
	ResetBy   string             `json:"reset_by,omitempty"`
	Weights   map[string]float64 `json:"weights"`
	Timestamp time.Time          `json:"timestamp"`
}

type DefaultsUpdatedEvent struct {
	UpdatedBy string             `json:"updated_by,omitempty"`
	Source    string             `json:"source"`
	Defaults  map[string]float64 `json:"defaults"`
	Timestamp time.Time          `json:"timestamp"`
}

// ScoresUpdatedEvent is published by the sentiment pipeline and consumed here.
type ScoresUpdatedEvent struct {
	Scores    map[string]float64 `json:"scores"`
	Source    string             `json:"source,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type PulseSnapshotEvent struct {
	SnapshotID string    `json:"snapshot_id"`
	Score      float64   `json:"score"`
	Stance     string    `json:"stance"`
	Timestamp  time.Time `json:"timestamp"`
}
