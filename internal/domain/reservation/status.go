package reservation

import "github.com/shopspring/decimal"

type Status string

const (
	StatusPendingUnpaid Status = "PENDING_UNPAID"
	StatusPending       Status = "PENDING"
	StatusConfirmed     Status = "CONFIRMED"
	StatusCancelled     Status = "CANCELLED"
	StatusCompleted     Status = "COMPLETED"
	StatusExpired       Status = "EXPIRED"
	StatusNoShow        Status = "NO_SHOW"
)

// ActiveStatuses hold their slot: no two reservations in these states may
// overlap on the same amenity.
var ActiveStatuses = []Status{StatusPendingUnpaid, StatusPending, StatusConfirmed}

var transitions = map[Status][]Status{
	StatusPendingUnpaid: {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusPending:       {StatusConfirmed, StatusCancelled},
	StatusConfirmed:     {StatusCompleted, StatusCancelled, StatusNoShow},
}

func (s Status) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	_, ok := transitions[s]
	return !ok && s.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingUnpaid, StatusPending, StatusConfirmed,
		StatusCancelled, StatusCompleted, StatusExpired, StatusNoShow:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// InitialStatus picks the entry state of a new reservation. An owed charge
// wins over approval.
func InitialStatus(charge decimal.Decimal, requiresApproval bool) Status {
	switch {
	case charge.IsPositive():
		return StatusPendingUnpaid
	case requiresApproval:
		return StatusPending
	default:
		return StatusConfirmed
	}
}
