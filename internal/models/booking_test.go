package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_Lifecycle(t *testing.T) {
	assert.True(t, BookingEnAttente.CanTransitionTo(BookingConfirme))
	assert.True(t, BookingConfirme.CanTransitionTo(BookingTermine))
	assert.True(t, BookingEnAttente.CanTransitionTo(BookingAnnule))
	assert.True(t, BookingConfirme.CanTransitionTo(BookingAnnule))

	// No skipping straight to TERMINE.
	assert.False(t, BookingEnAttente.CanTransitionTo(BookingTermine))
}

func TestBookingStatus_TerminalStatesRejectEverything(t *testing.T) {
	all := []BookingStatus{BookingEnAttente, BookingConfirme, BookingAnnule, BookingTermine}
	for _, from := range []BookingStatus{BookingAnnule, BookingTermine} {
		assert.True(t, from.Terminal())
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestBookableType_Valid(t *testing.T) {
	for _, bt := range []BookableType{BookableHotel, BookableResidence, BookableRestaurant, BookableLounge} {
		assert.True(t, bt.Valid())
	}
	assert.False(t, BookableType("villa").Valid())
	assert.False(t, BookableType("").Valid())
}
