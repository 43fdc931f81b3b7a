package catalog

import (
	"sort"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/longterm"
)

// Pick is the in-progress menu/dish choice for one day.
type Pick struct {
	MenuID       *int64  `json:"menuId"`
	ExtraDishIDs []int64 `json:"extraDishIds"`
}

// PickFromDay seeds a pick with a day's committed choice.
func PickFromDay(day longterm.SelectedDate) Pick {
	p := Pick{ExtraDishIDs: append([]int64{}, day.ExtraDishIDs...)}
	if day.MenuID != nil {
		id := *day.MenuID
		p.MenuID = &id
	}
	return p
}

// ToggleMenu selects menuID, or clears it when it is already selected.
// Choosing a menu while manual dishes are selected is rejected.
func (p Pick) ToggleMenu(menuID int64) (Pick, error) {
	if p.MenuID != nil && *p.MenuID == menuID {
		next := p.clone()
		next.MenuID = nil
		return next, nil
	}
	if len(p.ExtraDishIDs) > 0 {
		return p, apperr.Conflict("must deselect all dishes before choosing a menu")
	}
	next := p.clone()
	next.MenuID = &menuID
	return next, nil
}

// ToggleDish adds or removes a manual dish. With a menu selected the dish
// becomes an extra on top of the menu.
func (p Pick) ToggleDish(dishID int64) Pick {
	next := p.clone()
	for i, id := range next.ExtraDishIDs {
		if id == dishID {
			next.ExtraDishIDs = append(next.ExtraDishIDs[:i], next.ExtraDishIDs[i+1:]...)
			return next
		}
	}
	next.ExtraDishIDs = append(next.ExtraDishIDs, dishID)
	sort.Slice(next.ExtraDishIDs, func(i, j int) bool { return next.ExtraDishIDs[i] < next.ExtraDishIDs[j] })
	return next
}

// Choice converts the pick into the value applied to the selection.
func (p Pick) Choice(notes map[int64]string) longterm.DishChoice {
	c := p.clone()
	return longterm.DishChoice{MenuID: c.MenuID, ExtraDishIDs: c.ExtraDishIDs, Notes: notes}
}

func (p Pick) clone() Pick {
	out := Pick{ExtraDishIDs: append([]int64{}, p.ExtraDishIDs...)}
	if p.MenuID != nil {
		id := *p.MenuID
		out.MenuID = &id
	}
	return out
}
