package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFollowerSettled(t *testing.T) {
	ev := func(typ EventType, step Step) Event { return Event{Type: typ, Step: step} }

	tests := []struct {
		name   string
		events []Event
		want   bool
	}{
		{"empty", nil, false},
		{"step running", []Event{ev(EventStepStarted, StepCreate)}, false},
		{"step done, more to come", []Event{ev(EventStepStarted, StepCreate), ev(EventStepCompleted, StepCreate)}, false},
		{"failure is latest", []Event{ev(EventStepStarted, StepUpdate), ev(EventStepFailed, StepUpdate)}, true},
		{"failure then rerun", []Event{
			ev(EventStepStarted, StepUpdate), ev(EventStepFailed, StepUpdate),
			ev(EventStepStarted, StepUpdate),
		}, false},
		{"failure then completion", []Event{
			ev(EventStepFailed, StepComplete), ev(EventStepStarted, StepComplete),
			ev(EventStepCompleted, StepComplete), ev(EventAnalysisCompleted, StepComplete),
		}, true},
		{"recompute after completion", []Event{
			ev(EventAnalysisCompleted, StepComplete),
			ev(EventStepStarted, StepCalculateSOV), ev(EventStepCompleted, StepCalculateSOV),
		}, true},
		{"recompute running", []Event{
			ev(EventAnalysisCompleted, StepComplete), ev(EventStepStarted, StepExtractMentions),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Follower
			for _, e := range tt.events {
				f.Add(e)
			}
			assert.Equal(t, tt.want, f.Settled())
		})
	}
}
