package handlers

import "context"

// Outcome classifies what a handler did with an event. Business-level
// rejections are ordinary outcomes, not errors: only transport failures
// travel back to the dispatcher as errors.
type Outcome int

const (
	// OutcomeApplied means the event's effect reached the CRUD service.
	OutcomeApplied Outcome = iota
	// OutcomeRejected means the CRUD service refused the call; the event
	// is still considered consumed.
	OutcomeRejected
	// OutcomeSkipped means the event required no action (unknown event
	// name, missing data, intentional no-op).
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Result is what a handler reports back for a processed event.
type Result struct {
	Outcome Outcome
	Detail  string
}

// Handler maps one event to zero or more CRUD calls. body is the stored
// webhook envelope verbatim; handlers pick the fields they need.
type Handler interface {
	Handle(ctx context.Context, eventName string, body []byte) (Result, error)
}

func applied(detail string) Result  { return Result{Outcome: OutcomeApplied, Detail: detail} }
func rejected(detail string) Result { return Result{Outcome: OutcomeRejected, Detail: detail} }
func skipped(detail string) Result  { return Result{Outcome: OutcomeSkipped, Detail: detail} }
