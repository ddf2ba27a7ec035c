package models

import "time"

type BookingStatus string

const (
	BookingEnAttente BookingStatus = "EN_ATTENTE"
	BookingConfirme  BookingStatus = "CONFIRME"
	BookingAnnule    BookingStatus = "ANNULE"
	BookingTermine   BookingStatus = "TERMINE"
)

// Terminal reports whether the status accepts no further transitions.
func (s BookingStatus) Terminal() bool {
	return s == BookingAnnule || s == BookingTermine
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingEnAttente:
		return next == BookingConfirme || next == BookingAnnule
	case BookingConfirme:
		return next == BookingTermine || next == BookingAnnule
	default:
		return false
	}
}

// BookableType tags what kind of listing a booking points at. The escrow
// core only carries the kind plus an opaque id; the listing service owns
// the concrete entity.
type BookableType string

const (
	BookableHotel      BookableType = "hotel"
	BookableResidence  BookableType = "residence"
	BookableRestaurant BookableType = "restaurant"
	BookableLounge     BookableType = "lounge"
)

func (t BookableType) Valid() bool {
	switch t {
	case BookableHotel, BookableResidence, BookableRestaurant, BookableLounge:
		return true
	}
	return false
}

type Booking struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	CustomerID   string        `gorm:"not null;index" json:"customer_id"`
	OwnerID      string        `gorm:"not null;index" json:"owner_id"`
	BookableType BookableType  `gorm:"type:varchar(20);not null" json:"bookable_type"`
	BookableID   string        `gorm:"not null" json:"bookable_id"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	Guests       int           `json:"guests"`
	Reference    string        `gorm:"uniqueIndex;not null" json:"reference"`
	Status       BookingStatus `gorm:"type:varchar(20);not null;default:'EN_ATTENTE'" json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
