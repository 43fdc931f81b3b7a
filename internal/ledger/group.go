package ledger

import (
	"sort"

	"github.com/wolfman30/chefbook/internal/chefapi"
)

// DateGroup is the booking details sharing one session date.
type DateGroup struct {
	SessionDate string                         `json:"sessionDate"`
	Details     []chefapi.BookingDetailSummary `json:"details"`
}

// GroupBySessionDate groups details by date, dates ascending, keeping the
// input order inside a group.
func GroupBySessionDate(details []chefapi.BookingDetailSummary) []DateGroup {
	index := map[string]int{}
	var groups []DateGroup
	for _, d := range details {
		i, ok := index[d.SessionDate]
		if !ok {
			i = len(groups)
			index[d.SessionDate] = i
			groups = append(groups, DateGroup{SessionDate: d.SessionDate})
		}
		groups[i].Details = append(groups[i].Details, d)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].SessionDate < groups[j].SessionDate })
	return groups
}
