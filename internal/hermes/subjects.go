package hermes

const (
	SubjectWeightsChanged  = "pulse.weights.changed"
	SubjectWeightsReset    = "pulse.weights.reset"
	SubjectDefaultsUpdated = "pulse.weights.defaults"
	SubjectScoresUpdated   = "pulse.scores.updated"
	SubjectPulseSnapshot   = "pulse.score.snapshot"

	StreamName   = "PULSE_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

// StreamSubjects are captured by the JetStream stream.
var StreamSubjects = []string{"pulse.>"}
