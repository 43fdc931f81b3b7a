// Package longterm holds the in-memory draft of a multi-day booking: which
// calendar dates are selected, what is cooked on each of them, and how the
// draft is serialised for price calculation.
//
// Selection is an immutable value. Every mutation returns a new Selection and
// leaves the receiver untouched, so a day is always replaced as a whole.
package longterm

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/chefapi"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Package is a purchasable multi-day cooking service.
type Package struct {
	ID            int64  `json:"id"`
	Name          string `json:"name,omitempty"`
	DurationDays  int    `json:"durationDays"`
	MaxGuestCount int    `json:"maxGuestCount,omitempty"`
}

// SelectedDate is the configuration of one booked day.
type SelectedDate struct {
	Date           string           `json:"date"`
	ShowMenu       bool             `json:"showMenu"`
	MenuID         *int64           `json:"menuId"`
	ExtraDishIDs   []int64          `json:"extraDishIds"`
	MenuDishNotes  map[int64]string `json:"menuDishNotes"`
	ExtraDishNotes map[int64]string `json:"extraDishNotes"`
	StartTime      string           `json:"startTime"`
}

func newSelectedDate(date string) SelectedDate {
	return SelectedDate{
		Date:           date,
		ExtraDishIDs:   []int64{},
		MenuDishNotes:  map[int64]string{},
		ExtraDishNotes: map[int64]string{},
	}
}

func (d SelectedDate) clone() SelectedDate {
	out := d
	if d.MenuID != nil {
		id := *d.MenuID
		out.MenuID = &id
	}
	out.ExtraDishIDs = append([]int64{}, d.ExtraDishIDs...)
	out.MenuDishNotes = copyNotes(d.MenuDishNotes)
	out.ExtraDishNotes = copyNotes(d.ExtraDishNotes)
	return out
}

// HasExtras reports whether manual dishes are selected for the day.
func (d SelectedDate) HasExtras() bool {
	return len(d.ExtraDishIDs) > 0
}

// HasExtra reports whether dishID is one of the day's manual dishes.
func (d SelectedDate) HasExtra(dishID int64) bool {
	for _, id := range d.ExtraDishIDs {
		if id == dishID {
			return true
		}
	}
	return false
}

// Notes returns the union of both note maps.
func (d SelectedDate) Notes() map[int64]string {
	out := make(map[int64]string, len(d.MenuDishNotes)+len(d.ExtraDishNotes))
	for id, note := range d.MenuDishNotes {
		out[id] = note
	}
	for id, note := range d.ExtraDishNotes {
		out[id] = note
	}
	return out
}

// DishChoice is the result of the per-day menu/dish picker.
type DishChoice struct {
	MenuID       *int64           `json:"menuId"`
	ExtraDishIDs []int64          `json:"extraDishIds"`
	Notes        map[int64]string `json:"notes"`
}

// Selection maps ISO dates to their configuration, bounded by the package's day count.
type Selection struct {
	durationDays int
	days         map[string]SelectedDate
}

// NewSelection returns an empty selection for a package of durationDays days.
func NewSelection(durationDays int) Selection {
	return Selection{durationDays: durationDays, days: map[string]SelectedDate{}}
}

// DurationDays is the number of days the package requires.
func (s Selection) DurationDays() int { return s.durationDays }

// Len is the number of selected dates.
func (s Selection) Len() int { return len(s.days) }

// Remaining is how many more dates may be selected.
func (s Selection) Remaining() int {
	if r := s.durationDays - len(s.days); r > 0 {
		return r
	}
	return 0
}

// Complete reports whether exactly the required number of dates is selected.
func (s Selection) Complete() bool { return len(s.days) == s.durationDays }

// Has reports whether date is selected.
func (s Selection) Has(date string) bool {
	_, ok := s.days[date]
	return ok
}

// Day returns a copy of the configuration for date.
func (s Selection) Day(date string) (SelectedDate, bool) {
	day, ok := s.days[date]
	if !ok {
		return SelectedDate{}, false
	}
	return day.clone(), true
}

// Dates returns the selected dates in calendar order.
func (s Selection) Dates() []string {
	dates := make([]string, 0, len(s.days))
	for date := range s.days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Days returns copies of every selected day in calendar order.
func (s Selection) Days() []SelectedDate {
	dates := s.Dates()
	out := make([]SelectedDate, 0, len(dates))
	for _, date := range dates {
		out = append(out, s.days[date].clone())
	}
	return out
}

// Toggle removes date when selected, otherwise adds it with defaults. When the
// quota is already reached the selection is returned unchanged together with a
// ValidationError.
func (s Selection) Toggle(date string) (Selection, error) {
	if err := validateDate(date); err != nil {
		return s, err
	}
	if s.Has(date) {
		return s.without(date), nil
	}
	if len(s.days) >= s.durationDays {
		return s, apperr.Validation("dates", "this package allows exactly %d days; deselect a date first", s.durationDays)
	}
	return s.with(newSelectedDate(date)), nil
}

// SetShowMenu toggles the menu/dish section of a day without clearing it.
func (s Selection) SetShowMenu(date string, show bool) (Selection, error) {
	day, ok := s.days[date]
	if !ok {
		return s, notSelected(date)
	}
	day = day.clone()
	day.ShowMenu = show
	return s.with(day), nil
}

// SetStartTime overwrites a day's start time. An empty value clears it.
func (s Selection) SetStartTime(date, startTime string) (Selection, error) {
	day, ok := s.days[date]
	if !ok {
		return s, notSelected(date)
	}
	startTime = strings.TrimSpace(startTime)
	if startTime != "" {
		if _, err := time.Parse(timeLayout, startTime); err != nil {
			return s, apperr.Validation("startTime", "start time %q must be HH:MM", startTime)
		}
	}
	day = day.clone()
	day.StartTime = startTime
	return s.with(day), nil
}

// ApplyDishSelection replaces a day's menu, extra dishes and notes in one step.
// menu must be the snapshot of choice.MenuID when a menu is chosen.
func (s Selection) ApplyDishSelection(date string, choice DishChoice, menu *chefapi.MenuSnapshot) (Selection, error) {
	day, ok := s.days[date]
	if !ok {
		return s, notSelected(date)
	}
	var menuID *int64
	if choice.MenuID != nil {
		if menu == nil || menu.ID != *choice.MenuID {
			return s, apperr.Validation("menuId", "menu %d is not loaded", *choice.MenuID)
		}
		id := *choice.MenuID
		menuID = &id
	} else {
		menu = nil
	}

	extras := uniqueSorted(choice.ExtraDishIDs)
	for _, id := range extras {
		if menu.Contains(id) {
			return s, apperr.Conflict("dish %d is already part of menu %q", id, menu.Name)
		}
	}

	day = day.clone()
	day.MenuID = menuID
	day.ExtraDishIDs = extras
	day.MenuDishNotes, day.ExtraDishNotes = partitionNotes(choice.Notes, menu, extras)
	return s.with(day), nil
}

// ReplaceNotes overwrites both note maps of a day, partitioning notes by
// membership in menu, which must match the day's menu.
func (s Selection) ReplaceNotes(date string, notes map[int64]string, menu *chefapi.MenuSnapshot) (Selection, error) {
	day, ok := s.days[date]
	if !ok {
		return s, notSelected(date)
	}
	if day.MenuID == nil {
		menu = nil
	} else if menu == nil || menu.ID != *day.MenuID {
		return s, apperr.Validation("menuId", "menu %d is not loaded", *day.MenuID)
	}
	day = day.clone()
	day.MenuDishNotes, day.ExtraDishNotes = partitionNotes(notes, menu, day.ExtraDishIDs)
	return s.with(day), nil
}

// MarshalJSON renders the selection for the bridge.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DurationDays int            `json:"durationDays"`
		Remaining    int            `json:"remaining"`
		Days         []SelectedDate `json:"days"`
	}{s.durationDays, s.Remaining(), s.Days()})
}

func (s Selection) with(day SelectedDate) Selection {
	next := make(map[string]SelectedDate, len(s.days)+1)
	for date, d := range s.days {
		next[date] = d
	}
	next[day.Date] = day
	return Selection{durationDays: s.durationDays, days: next}
}

func (s Selection) without(date string) Selection {
	next := make(map[string]SelectedDate, len(s.days))
	for d, day := range s.days {
		if d != date {
			next[d] = day
		}
	}
	return Selection{durationDays: s.durationDays, days: next}
}

// partitionNotes splits notes by origin. Notes for dishes outside the menu and
// the extras, and blank notes, are dropped.
func partitionNotes(notes map[int64]string, menu *chefapi.MenuSnapshot, extras []int64) (map[int64]string, map[int64]string) {
	extraSet := make(map[int64]struct{}, len(extras))
	for _, id := range extras {
		extraSet[id] = struct{}{}
	}
	menuNotes := map[int64]string{}
	extraNotes := map[int64]string{}
	for id, note := range notes {
		if strings.TrimSpace(note) == "" {
			continue
		}
		if menu.Contains(id) {
			menuNotes[id] = note
			continue
		}
		if _, ok := extraSet[id]; ok {
			extraNotes[id] = note
		}
	}
	return menuNotes, extraNotes
}

func validateDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return apperr.Validation("date", "%q is not a YYYY-MM-DD date", date)
	}
	return nil
}

func notSelected(date string) error {
	return apperr.Validation("date", "%s is not part of the booking", date)
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func copyNotes(in map[int64]string) map[int64]string {
	out := make(map[int64]string, len(in))
	for id, note := range in {
		out[id] = note
	}
	return out
}
