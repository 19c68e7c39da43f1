package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewFormState(t *testing.T) {
	st := NewFormState()
	assert.Equal(t, TravelTypeUnset, st.TravelType)
	assert.Equal(t, 1, st.GuestCount)
	assert.Equal(t, []string{""}, st.GuestNames)
	assert.Equal(t, 0, st.CoordinatorIndex)
	assert.Equal(t, "0", st.HardDrinkCount)
	assert.False(t, st.Events.Any())
}

func TestCloneDoesNotShareGuestNames(t *testing.T) {
	st := NewFormState()
	st.GuestNames = []string{"Asha", "Ravi"}

	c := st.Clone()
	c.GuestNames[1] = "Meera"

	assert.Equal(t, "Ravi", st.GuestNames[1])
}

func TestCoordinatorName(t *testing.T) {
	tests := []struct {
		name  string
		state FormState
		want  string
	}{
		{
			name:  "solo uses name",
			state: FormState{TravelType: TravelTypeSolo, Name: "Asha", GuestNames: []string{"Asha"}},
			want:  "Asha",
		},
		{
			name:  "group uses selected guest",
			state: FormState{TravelType: TravelTypeGroup, Name: "Asha", GuestNames: []string{"Asha", "Ravi"}, CoordinatorIndex: 1},
			want:  "Ravi",
		},
		{
			name:  "group index out of range falls back to name",
			state: FormState{TravelType: TravelTypeGroup, Name: "Asha", GuestNames: []string{"Asha"}, CoordinatorIndex: 3},
			want:  "Asha",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.CoordinatorName())
		})
	}
}

func TestEvents(t *testing.T) {
	e := Events{Reception: true}
	assert.True(t, e.Any())
	assert.True(t, e.Has(EventReception))
	assert.False(t, e.Has(EventWedding))
	assert.False(t, e.Has("sangeet"))
}

func TestOptionLists(t *testing.T) {
	assert.True(t, IsTravelMode(TravelModeBus))
	assert.False(t, IsTravelMode(TravelModeUnset))
	assert.True(t, IsEventKey(EventWedding))
	assert.True(t, IsArrivalPoint("Bhopal Junction"))
	assert.False(t, IsArrivalPoint("Indore"))
	assert.True(t, IsAccommodationOption("No, own arrangements"))
	assert.True(t, IsHardDrinkCount("5+"))
	assert.False(t, IsHardDrinkCount("6"))
	assert.False(t, TravelModePersonal.NeedsArrival())
	assert.True(t, TravelModeFlight.NeedsArrival())
}

func TestSubmissionAckAccepted(t *testing.T) {
	assert.True(t, SubmissionAck{Result: "success"}.Accepted())
	assert.False(t, SubmissionAck{Result: "error", Error: "sheet locked"}.Accepted())
	assert.False(t, SubmissionAck{}.Accepted())
}
