package analysis

import "time"

// EventType of a step event
type EventType string

const (
	EventStepStarted       EventType = "step.started"
	EventStepCompleted     EventType = "step.completed"
	EventStepFailed        EventType = "step.failed"
	EventAnalysisCompleted EventType = "analysis.completed"
)

// EventPageSize caps one read of the event log. A page this full may have more
// events behind it.
const EventPageSize = 500

// Event is one entry of the per-analysis step log. Clients follow it instead of
// guessing progress.
type Event struct {
	Seq        int64      `json:"seq"`
	ID         string     `json:"id"`
	AnalysisID AnalysisID `json:"analysisId"`
	Type       EventType  `json:"type"`
	Step       Step       `json:"step"`
	Message    string     `json:"message,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Terminal reports whether no further events are expected after e.
func (e Event) Terminal() bool {
	return e.Type == EventAnalysisCompleted || e.Type == EventStepFailed
}

// Follower tracks a replayed or live event log and decides when a client can
// stop following it. A failure only settles the log while it is still the
// latest event; a later step.started means the step was run again.
type Follower struct {
	last      Event
	seen      bool
	completed bool
}

func (f *Follower) Add(e Event) {
	f.last = e
	f.seen = true
	if e.Type == EventAnalysisCompleted {
		f.completed = true
	}
}

// Settled reports whether nothing is running once every event delivered so
// far has been added: the last event is terminal, or it finishes a recompute
// on an analysis that already completed.
func (f *Follower) Settled() bool {
	if !f.seen {
		return false
	}
	if f.last.Terminal() {
		return true
	}
	return f.completed && f.last.Type == EventStepCompleted
}
