package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/catalog"
	"github.com/wolfman30/chefbook/internal/chefapi"
	"github.com/wolfman30/chefbook/internal/longterm"
	"github.com/wolfman30/chefbook/internal/observability/metrics"
	"github.com/wolfman30/chefbook/pkg/logging"
)

const dateLayout = "2006-01-02"

// Catalog resolves the menus and dishes offered by a chef.
type Catalog interface {
	Menus(ctx context.Context, chefID int64) ([]chefapi.MenuSnapshot, error)
	Menu(ctx context.Context, chefID, menuID int64) (*chefapi.MenuSnapshot, error)
	Dishes(ctx context.Context, chefID int64, menuID *int64) ([]chefapi.Dish, error)
	MenuChanged(ctx context.Context, chefID int64, from, to *int64) ([]chefapi.Dish, error)
	DishNames(ctx context.Context, chefID int64) (map[int64]string, error)
}

// Pricer prices an assembled long-term booking.
type Pricer interface {
	CalculateLongTermBooking(ctx context.Context, payload *chefapi.BookingPayload) (chefapi.PricedDraft, error)
}

// NoteEditorView is the open note editor as rendered by the shell.
type NoteEditorView struct {
	Date    string                `json:"date"`
	Targets []longterm.NoteTarget `json:"targets"`
	Notes   map[int64]string      `json:"notes"`
}

// DraftView is the render state of a draft.
type DraftView struct {
	ID         string                  `json:"id"`
	ChefID     int64                   `json:"chefId"`
	Package    longterm.Package        `json:"package"`
	Selection  longterm.Selection      `json:"selection"`
	Picks      map[string]catalog.Pick `json:"picks,omitempty"`
	NoteEditor *NoteEditorView         `json:"noteEditor,omitempty"`
	Priced     chefapi.PricedDraft     `json:"priced,omitempty"`
}

// Draft is one customer's long-term booking under construction. Calls are
// serialised by the draft's mutex.
type Draft struct {
	id      string
	chefID  int64
	pkg     longterm.Package
	catalog Catalog
	pricer  Pricer
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time

	mu        sync.Mutex
	selection longterm.Selection
	picks     map[string]catalog.Pick
	editor    *longterm.NoteEditor
	priced    chefapi.PricedDraft
}

// ID is the session id of the draft.
func (d *Draft) ID() string { return d.id }

// View snapshots the draft.
func (d *Draft) View() DraftView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view()
}

func (d *Draft) view() DraftView {
	v := DraftView{
		ID:        d.id,
		ChefID:    d.chefID,
		Package:   d.pkg,
		Selection: d.selection,
		Priced:    d.priced,
	}
	if len(d.picks) > 0 {
		v.Picks = make(map[string]catalog.Pick, len(d.picks))
		for date, p := range d.picks {
			v.Picks[date] = p
		}
	}
	if d.editor != nil && d.editor.Open() {
		v.NoteEditor = &NoteEditorView{
			Date:    d.editor.Date(),
			Targets: d.editor.Targets(),
			Notes:   d.editor.Notes(),
		}
	}
	return v
}

// Selection returns the current selection value.
func (d *Draft) Selection() longterm.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selection
}

// ToggleDate selects or deselects a calendar date. Dates in the past cannot
// be added.
func (d *Draft) ToggleDate(date string) (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.selection.Has(date) && d.inPast(date) {
		d.metrics.ObserveRejection("past_date")
		return d.view(), apperr.Validation("date", "%s is in the past", date)
	}
	next, err := d.selection.Toggle(date)
	if err != nil {
		if apperr.IsValidation(err) && d.selection.Len() >= d.pkg.DurationDays {
			d.metrics.ObserveRejection("quota")
		}
		return d.view(), err
	}
	if !next.Has(date) {
		delete(d.picks, date)
		if d.editor != nil && d.editor.Date() == date {
			d.editor.Cancel()
			d.editor = nil
		}
	}
	d.commit(next)
	return d.view(), nil
}

// SetShowMenu shows or hides the menu section of a day.
func (d *Draft) SetShowMenu(date string, show bool) (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next, err := d.selection.SetShowMenu(date, show)
	if err != nil {
		return d.view(), err
	}
	d.commit(next)
	return d.view(), nil
}

// SetStartTime sets a day's start time.
func (d *Draft) SetStartTime(date, startTime string) (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next, err := d.selection.SetStartTime(date, startTime)
	if err != nil {
		return d.view(), err
	}
	d.commit(next)
	return d.view(), nil
}

// Menus lists the chef's menus.
func (d *Draft) Menus(ctx context.Context) ([]chefapi.MenuSnapshot, error) {
	return d.catalog.Menus(ctx, d.chefID)
}

// Dishes lists the dishes selectable on date given its current pick.
func (d *Draft) Dishes(ctx context.Context, date string) ([]chefapi.Dish, error) {
	d.mu.Lock()
	pick, err := d.pickFor(date)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return d.catalog.Dishes(ctx, d.chefID, pick.MenuID)
}

// ToggleMenu selects or clears a menu in the day's pick and returns the dish
// list valid for the new pick.
func (d *Draft) ToggleMenu(ctx context.Context, date string, menuID int64) (catalog.Pick, []chefapi.Dish, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pick, err := d.pickFor(date)
	if err != nil {
		return catalog.Pick{}, nil, err
	}
	next, err := pick.ToggleMenu(menuID)
	if err != nil {
		d.metrics.ObserveRejection("menu_with_dishes")
		return pick, nil, err
	}
	if next.MenuID != nil {
		if _, err := d.catalog.Menu(ctx, d.chefID, *next.MenuID); err != nil {
			return pick, nil, err
		}
	}
	dishes, err := d.catalog.MenuChanged(ctx, d.chefID, pick.MenuID, next.MenuID)
	if err != nil {
		return pick, nil, err
	}
	d.setPick(date, next)
	return next, dishes, nil
}

// ToggleDish adds or removes a dish in the day's pick.
func (d *Draft) ToggleDish(date string, dishID int64) (catalog.Pick, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pick, err := d.pickFor(date)
	if err != nil {
		return catalog.Pick{}, err
	}
	next := pick.ToggleDish(dishID)
	d.setPick(date, next)
	return next, nil
}

// ApplySelection commits the day's pick to the selection, keeping the notes
// of dishes that stay selected.
func (d *Draft) ApplySelection(ctx context.Context, date string) (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pick, err := d.pickFor(date)
	if err != nil {
		return d.view(), err
	}
	var menu *chefapi.MenuSnapshot
	if pick.MenuID != nil {
		if menu, err = d.catalog.Menu(ctx, d.chefID, *pick.MenuID); err != nil {
			return d.view(), err
		}
	}
	day, _ := d.selection.Day(date)
	next, err := d.selection.ApplyDishSelection(date, pick.Choice(day.Notes()), menu)
	if err != nil {
		if apperr.IsConflict(err) {
			d.metrics.ObserveRejection("extra_in_menu")
		}
		return d.view(), err
	}
	delete(d.picks, date)
	d.commit(next)
	return d.view(), nil
}

// OpenNotes starts the note editor for date. Only one editor may be open.
func (d *Draft) OpenNotes(ctx context.Context, date string) (*NoteEditorView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.editor != nil && d.editor.Open() {
		return nil, apperr.Conflict("notes for %s are already being edited", d.editor.Date())
	}
	day, ok := d.selection.Day(date)
	if !ok {
		return nil, apperr.Validation("date", "%s is not part of the booking", date)
	}
	var menu *chefapi.MenuSnapshot
	var err error
	if day.MenuID != nil {
		if menu, err = d.catalog.Menu(ctx, d.chefID, *day.MenuID); err != nil {
			return nil, err
		}
	}
	var names map[int64]string
	if day.HasExtras() {
		if names, err = d.catalog.DishNames(ctx, d.chefID); err != nil {
			return nil, err
		}
	}
	editor, err := longterm.OpenNoteEditor(day, menu, names)
	if err != nil {
		return nil, err
	}
	d.editor = editor
	return d.view().NoteEditor, nil
}

// SetNote edits the note buffer of the open editor.
func (d *Draft) SetNote(dishID int64, text string) (*NoteEditorView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	editor, err := d.openEditor()
	if err != nil {
		return nil, err
	}
	if err := editor.Set(dishID, text); err != nil {
		return nil, err
	}
	return d.view().NoteEditor, nil
}

// SaveNotes commits the note buffer and closes the editor.
func (d *Draft) SaveNotes() (DraftView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	editor, err := d.openEditor()
	if err != nil {
		return d.view(), err
	}
	next, err := editor.Save(d.selection)
	if err != nil {
		return d.view(), err
	}
	d.editor = nil
	d.commit(next)
	return d.view(), nil
}

// CancelNotes discards the note buffer.
func (d *Draft) CancelNotes() DraftView {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editor != nil {
		d.editor.Cancel()
		d.editor = nil
	}
	return d.view()
}

// Calculate assembles the draft and asks the backend to price it. The draft
// is kept as is when pricing fails.
func (d *Draft) Calculate(ctx context.Context, guestCount int, address string) (chefapi.PricedDraft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload, err := longterm.Assemble(d.selection, d.pkg, d.chefID, guestCount, address)
	if err != nil {
		return nil, err
	}
	priced, err := d.pricer.CalculateLongTermBooking(ctx, payload)
	if err != nil {
		if !apperr.Silent(err) {
			d.logger.Warn("long-term booking pricing failed", "draft_id", d.id, "error", err)
		}
		return nil, fmt.Errorf("flow: calculate draft: %w", err)
	}
	d.priced = priced
	d.logger.Info("long-term booking priced", "draft_id", d.id, "chef_id", d.chefID, "days", d.selection.Len())
	return priced, nil
}

func (d *Draft) commit(next longterm.Selection) {
	d.selection = next
	d.priced = nil
}

func (d *Draft) pickFor(date string) (catalog.Pick, error) {
	day, ok := d.selection.Day(date)
	if !ok {
		return catalog.Pick{}, apperr.Validation("date", "%s is not part of the booking", date)
	}
	if p, ok := d.picks[date]; ok {
		return p, nil
	}
	return catalog.PickFromDay(day), nil
}

func (d *Draft) setPick(date string, p catalog.Pick) {
	if d.picks == nil {
		d.picks = map[string]catalog.Pick{}
	}
	d.picks[date] = p
}

func (d *Draft) openEditor() (*longterm.NoteEditor, error) {
	if d.editor == nil || !d.editor.Open() {
		return nil, apperr.Conflict("no notes are being edited")
	}
	return d.editor, nil
}

func (d *Draft) inPast(date string) bool {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return false
	}
	today, _ := time.Parse(dateLayout, d.now().Format(dateLayout))
	return day.Before(today)
}
