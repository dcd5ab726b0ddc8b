package hermes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSubjectsCoveredByStream(t *testing.T) {
	subjects := []string{
		SubjectWeightsChanged, SubjectWeightsReset, SubjectDefaultsUpdated,
		SubjectScoresUpdated, SubjectPulseSnapshot,
	}
	for _, s := range subjects {
		covered := false
		for _, pattern := range StreamSubjects {
			if strings.HasPrefix(s, strings.TrimSuffix(pattern, ">")) {
				covered = true
			}
		}
		if !covered {
			t.Errorf("subject %s not captured by stream subjects %v", s, StreamSubjects)
		}
	}
}

func TestStreamMaxAgeParses(t *testing.T) {
	d, err := time.ParseDuration(StreamMaxAge)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d != 30*24*time.Hour {
		t.Errorf("expected 30 days, got %v", d)
	}
}

func TestScoresUpdatedEventDecode(t *testing.T) {
	payload := `{"scores":{"AdTech":61.5,"Fintech":44},"source":"sentiment-engine","timestamp":"2025-05-02T16:00:00Z"}`

	var evt ScoresUpdatedEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if evt.Scores["AdTech"] != 61.5 || evt.Scores["Fintech"] != 44 {
		t.Errorf("unexpected scores %v", evt.Scores)
	}
	if evt.Source != "sentiment-engine" {
		t.Errorf("expected source, got %q", evt.Source)
	}
	if evt.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}
