package checkin

import (
	"time"

	"checkin-gate/internal/models"
)

type Outcome int

const (
	NotFound Outcome = iota
	Granted
	Denied
	// Pending is only returned by PreviewToken: the token is valid and
	// waiting for the operator to confirm.
	Pending
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "GRANTED"
	case Denied:
		return "DENIED"
	case Pending:
		return "PENDING"
	default:
		return "NOT_FOUND"
	}
}

const ReasonAlreadyArrived = "already arrived"

// Result is the answer to one scan. ArrivedAt is only set on Granted.
type Result struct {
	Outcome   Outcome
	Reason    string
	Guest     *models.Guest
	ArrivedAt *time.Time
}

func notFound() Result {
	return Result{Outcome: NotFound}
}

func denied(guest *models.Guest) Result {
	return Result{Outcome: Denied, Reason: ReasonAlreadyArrived, Guest: guest}
}

func granted(guest *models.Guest, at time.Time) Result {
	return Result{Outcome: Granted, Guest: guest, ArrivedAt: &at}
}
