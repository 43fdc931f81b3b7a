package longterm

import (
	"sort"
	"strings"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/chefapi"
)

// Assemble converts a complete selection into the price calculation payload.
func Assemble(sel Selection, pkg Package, chefID int64, guestCount int, address string) (*chefapi.BookingPayload, error) {
	if guestCount <= 0 {
		return nil, apperr.Validation("guestCount", "guest count is required")
	}
	if pkg.MaxGuestCount > 0 && guestCount > pkg.MaxGuestCount {
		return nil, apperr.Validation("guestCount", "this package serves at most %d guests", pkg.MaxGuestCount)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, apperr.Validation("address", "address is required")
	}
	if sel.Len() != pkg.DurationDays {
		return nil, apperr.Validation("dates", "durationDays mismatch: selected %d of %d days", sel.Len(), pkg.DurationDays)
	}

	details := make([]chefapi.BookingDetailRequest, 0, sel.Len())
	for _, day := range sel.Days() {
		details = append(details, assembleDay(day))
	}

	return &chefapi.BookingPayload{
		ChefID:         chefID,
		PackageID:      pkg.ID,
		GuestCount:     guestCount,
		Location:       address,
		BookingDetails: details,
	}, nil
}

func assembleDay(day SelectedDate) chefapi.BookingDetailRequest {
	detail := chefapi.BookingDetailRequest{
		SessionDate: day.Date,
		StartTime:   day.StartTime,
	}
	if day.ShowMenu && day.MenuID != nil {
		id := *day.MenuID
		detail.MenuID = &id
	}
	if len(day.ExtraDishIDs) > 0 {
		detail.ExtraDishIDs = append([]int64{}, day.ExtraDishIDs...)
	}

	notes := day.Notes()
	if len(notes) > 0 {
		ids := make([]int64, 0, len(notes))
		for id := range notes {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			detail.Dishes = append(detail.Dishes, chefapi.DishNote{DishID: id, Notes: notes[id]})
		}
	}
	return detail
}
