package longterm

import (
	"github.com/wolfman30/chefbook/internal/apperr"
	"github.com/wolfman30/chefbook/internal/chefapi"
)

// NoteTarget is a dish whose note can be edited.
type NoteTarget struct {
	DishID   int64  `json:"dishId"`
	DishName string `json:"dishName"`
	FromMenu bool   `json:"fromMenu"`
}

// NoteEditor buffers per-dish note edits for one day. Nothing reaches the
// selection until Save.
type NoteEditor struct {
	date    string
	menu    *chefapi.MenuSnapshot
	targets []NoteTarget
	temp    map[int64]string
	closed  bool
}

// OpenNoteEditor starts editing the notes of day. Targets are the menu's dishes
// followed by the extra dishes; dishNames supplies names for the extras.
func OpenNoteEditor(day SelectedDate, menu *chefapi.MenuSnapshot, dishNames map[int64]string) (*NoteEditor, error) {
	if day.MenuID == nil {
		menu = nil
	} else if menu == nil || menu.ID != *day.MenuID {
		return nil, apperr.Validation("menuId", "menu %d is not loaded", *day.MenuID)
	}

	var targets []NoteTarget
	seen := map[int64]struct{}{}
	if menu != nil {
		for _, item := range menu.MenuItems {
			if _, ok := seen[item.DishID]; ok {
				continue
			}
			seen[item.DishID] = struct{}{}
			targets = append(targets, NoteTarget{DishID: item.DishID, DishName: item.DishName, FromMenu: true})
		}
	}
	for _, id := range day.ExtraDishIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		targets = append(targets, NoteTarget{DishID: id, DishName: dishNames[id]})
	}
	if len(targets) == 0 {
		return nil, apperr.Validation("dishes", "select a menu or dishes for %s before adding notes", day.Date)
	}

	return &NoteEditor{
		date:    day.Date,
		menu:    menu,
		targets: targets,
		temp:    day.Notes(),
	}, nil
}

// Date is the day being edited.
func (e *NoteEditor) Date() string { return e.date }

// Open reports whether the editor still accepts edits.
func (e *NoteEditor) Open() bool { return !e.closed }

// Targets lists the dishes that can carry a note.
func (e *NoteEditor) Targets() []NoteTarget {
	return append([]NoteTarget(nil), e.targets...)
}

// Notes returns a copy of the draft buffer.
func (e *NoteEditor) Notes() map[int64]string {
	return copyNotes(e.temp)
}

// Note returns the draft note for dishID.
func (e *NoteEditor) Note(dishID int64) string {
	return e.temp[dishID]
}

// Set writes a draft note. An empty text removes it.
func (e *NoteEditor) Set(dishID int64, text string) error {
	if e.closed {
		return apperr.Conflict("note editor for %s is closed", e.date)
	}
	if !e.isTarget(dishID) {
		return apperr.Validation("dishId", "dish %d is not selected for %s", dishID, e.date)
	}
	if text == "" {
		delete(e.temp, dishID)
		return nil
	}
	e.temp[dishID] = text
	return nil
}

// Save commits the buffer as the day's complete note set and closes the editor.
func (e *NoteEditor) Save(sel Selection) (Selection, error) {
	if e.closed {
		return sel, apperr.Conflict("note editor for %s is closed", e.date)
	}
	next, err := sel.ReplaceNotes(e.date, e.temp, e.menu)
	if err != nil {
		return sel, err
	}
	e.closed = true
	return next, nil
}

// Cancel discards the buffer.
func (e *NoteEditor) Cancel() {
	e.closed = true
	e.temp = map[int64]string{}
}

func (e *NoteEditor) isTarget(dishID int64) bool {
	for _, t := range e.targets {
		if t.DishID == dishID {
			return true
		}
	}
	return false
}
