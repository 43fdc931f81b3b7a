package ledger

import "github.com/wolfman30/chefbook/internal/chefapi"

var statusRank = map[chefapi.CycleStatus]int{
	chefapi.CycleStatusPendingFirstCycle: 0,
	chefapi.CycleStatusConfirmed:         1,
	chefapi.CycleStatusPaid:              2,
}

// Payable reports whether a cycle in status can be paid.
func Payable(status chefapi.CycleStatus) bool {
	return status == chefapi.CycleStatusPendingFirstCycle || status == chefapi.CycleStatusConfirmed
}

// Terminal reports whether status is final.
func Terminal(status chefapi.CycleStatus) bool {
	return status == chefapi.CycleStatusPaid || status == chefapi.CycleStatusCancelled
}

// ValidTransition reports whether a cycle may move from one status to
// another. Unknown statuses are accepted as-is.
func ValidTransition(from, to chefapi.CycleStatus) bool {
	if from == to {
		return true
	}
	if Terminal(from) {
		return false
	}
	if to == chefapi.CycleStatusCancelled {
		return true
	}
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return true
	}
	return toRank > fromRank
}

func (l *Ledger) checkTransitions(previous, current []chefapi.PaymentCycle) {
	before := make(map[int64]chefapi.CycleStatus, len(previous))
	for _, c := range previous {
		before[c.ID] = c.Status
	}
	for _, c := range current {
		from, ok := before[c.ID]
		if !ok || ValidTransition(from, c.Status) {
			continue
		}
		l.logger.Warn("payment cycle status regressed",
			"booking_id", l.bookingID,
			"cycle_id", c.ID,
			"from", from,
			"to", c.Status,
		)
	}
}
