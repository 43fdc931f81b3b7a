package longterm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chefbook/internal/apperr"
)

var threeDayPackage = Package{ID: 3, Name: "3-day family", DurationDays: 3, MaxGuestCount: 10}

func TestAssemble_DurationMismatch(t *testing.T) {
	sel := mustToggle(t, NewSelection(3), "2026-03-02")
	sel = mustToggle(t, sel, "2026-03-03")

	_, err := Assemble(sel, threeDayPackage, 12, 4, "1 Main St")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "durationDays mismatch")
}

func TestAssemble_RequiresGuestsAndAddress(t *testing.T) {
	sel := NewSelection(3)
	for _, d := range []string{"2026-03-02", "2026-03-03", "2026-03-04"} {
		sel = mustToggle(t, sel, d)
	}

	_, err := Assemble(sel, threeDayPackage, 12, 0, "1 Main St")
	assert.True(t, apperr.IsValidation(err))

	_, err = Assemble(sel, threeDayPackage, 12, 11, "1 Main St")
	assert.True(t, apperr.IsValidation(err))

	_, err = Assemble(sel, threeDayPackage, 12, 4, "   ")
	assert.True(t, apperr.IsValidation(err))
}

func TestAssemble_BuildsOneDetailPerDay(t *testing.T) {
	sel := NewSelection(3)
	for _, d := range []string{"2026-03-04", "2026-03-02", "2026-03-03"} {
		sel = mustToggle(t, sel, d)
	}
	var err error
	sel, err = sel.SetShowMenu("2026-03-02", true)
	require.NoError(t, err)
	sel, err = sel.ApplyDishSelection("2026-03-02", DishChoice{
		MenuID:       int64Ptr(7),
		ExtraDishIDs: []int64{103},
		Notes:        map[int64]string{103: "no peanuts", 101: "less salt"},
	}, familyMenu())
	require.NoError(t, err)
	sel, err = sel.SetStartTime("2026-03-02", "10:00")
	require.NoError(t, err)

	// Menu chosen but the menu section hidden: menuId is sent as null.
	sel, err = sel.ApplyDishSelection("2026-03-03", DishChoice{MenuID: int64Ptr(7)}, familyMenu())
	require.NoError(t, err)

	payload, err := Assemble(sel, threeDayPackage, 12, 4, " 1 Main St ")
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", payload.Location)
	require.Len(t, payload.BookingDetails, 3)

	first := payload.BookingDetails[0]
	assert.Equal(t, "2026-03-02", first.SessionDate)
	assert.Equal(t, "10:00", first.StartTime)
	require.NotNil(t, first.MenuID)
	assert.Equal(t, int64(7), *first.MenuID)
	assert.Equal(t, []int64{103}, first.ExtraDishIDs)
	require.Len(t, first.Dishes, 2)
	assert.Equal(t, int64(101), first.Dishes[0].DishID)

	second := payload.BookingDetails[1]
	assert.Nil(t, second.MenuID)

	raw, err := json.Marshal(payload.BookingDetails[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"sessionDate":"2026-03-04","startTime":"","menuId":null,"extraDishIds":null,"dishes":null}`, string(raw))
}
