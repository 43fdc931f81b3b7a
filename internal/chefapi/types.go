// Package chefapi is the HTTP client for the home-chef marketplace backend.
package chefapi

import "encoding/json"

// MenuItem is one dish of a chef menu.
type MenuItem struct {
	DishID   int64  `json:"dishId"`
	DishName string `json:"dishName"`
}

// MenuSnapshot is the read-only projection of a chef menu.
type MenuSnapshot struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	MenuItems []MenuItem `json:"menuItems"`
}

// Contains reports whether dishID is part of the menu.
func (m *MenuSnapshot) Contains(dishID int64) bool {
	if m == nil {
		return false
	}
	for _, item := range m.MenuItems {
		if item.DishID == dishID {
			return true
		}
	}
	return false
}

// DishIDs returns the menu's dish ids in menu order.
func (m *MenuSnapshot) DishIDs() []int64 {
	if m == nil {
		return nil
	}
	ids := make([]int64, 0, len(m.MenuItems))
	for _, item := range m.MenuItems {
		ids = append(ids, item.DishID)
	}
	return ids
}

// Dish is a single dish a chef can cook.
type Dish struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// DishNote pairs a dish with the customer's free-text note.
type DishNote struct {
	DishID int64  `json:"dishId"`
	Notes  string `json:"notes"`
}

// BookingDetailRequest is one day of a long-term booking draft.
type BookingDetailRequest struct {
	SessionDate  string     `json:"sessionDate"`
	StartTime    string     `json:"startTime"`
	MenuID       *int64     `json:"menuId"`
	ExtraDishIDs []int64    `json:"extraDishIds"`
	Dishes       []DishNote `json:"dishes"`
}

// BookingPayload is posted to the long-term price calculation endpoint.
type BookingPayload struct {
	ChefID         int64                  `json:"chefId"`
	PackageID      int64                  `json:"packageId"`
	GuestCount     int                    `json:"guestCount"`
	Location       string                 `json:"location"`
	BookingDetails []BookingDetailRequest `json:"bookingDetails"`
}

// PricedDraft is the backend's price calculation, passed through untouched.
type PricedDraft = json.RawMessage

// CycleStatus is the server-assigned state of a payment cycle.
type CycleStatus string

const (
	CycleStatusPendingFirstCycle CycleStatus = "PENDING_FIRST_CYCLE"
	CycleStatusConfirmed         CycleStatus = "CONFIRMED"
	CycleStatusPaid              CycleStatus = "PAID"
	CycleStatusCancelled         CycleStatus = "CANCELLED"
)

// DetailDish is a dish as shown on a booked session.
type DetailDish struct {
	DishID   int64  `json:"dishId"`
	DishName string `json:"dishName,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// BookingDetailSummary is one booked session inside a payment cycle.
type BookingDetailSummary struct {
	ID          int64        `json:"id"`
	SessionDate string       `json:"sessionDate"`
	StartTime   string       `json:"startTime"`
	Status      string       `json:"status"`
	Location    string       `json:"location"`
	TotalPrice  float64      `json:"totalPrice"`
	Dishes      []DetailDish `json:"dishes"`
}

// PaymentCycle groups booking details billed together.
type PaymentCycle struct {
	ID             int64                  `json:"id"`
	CycleOrder     int                    `json:"cycleOrder"`
	StartDate      string                 `json:"startDate"`
	EndDate        string                 `json:"endDate"`
	Status         CycleStatus            `json:"status"`
	AmountDue      float64                `json:"amountDue"`
	BookingDetails []BookingDetailSummary `json:"bookingDetails"`
}

// BookingStatus is the slice of GET /bookings/{id} the ledger reads.
type BookingStatus struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// DepositResult is returned by a wallet top-up request.
type DepositResult struct {
	PaymentURL string `json:"paymentUrl,omitempty"`
	Message    string `json:"message,omitempty"`
}
