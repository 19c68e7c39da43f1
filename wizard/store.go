package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"RSVPBot/model"
)

// Store owns a FormState and keeps its derived fields consistent
type Store struct {
	state model.FormState
}

// NewStore creates a store holding the default record
func NewStore() *Store {
	return &Store{state: model.NewFormState()}
}

// State returns a copy of the record
func (s *Store) State() model.FormState {
	return s.state.Clone()
}

// SetField parses value for the named scalar field and assigns it.
// Fields that feed the guest list are followed by Derive.
func (s *Store) SetField(field model.Field, value string) error {
	var err error
	switch field {
	case model.FieldTravelType:
		err = s.setTravelType(model.TravelType(value))
	case model.FieldName:
		s.state.Name = strings.TrimSpace(value)
	case model.FieldPhone:
		s.SetPhone(value)
	case model.FieldGuestCount:
		n, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil {
			return fmt.Errorf("%w: guestCount %q", model.ErrInvalidValue, value)
		}
		err = s.setGuestCount(n)
	case model.FieldCoordinatorIndex:
		i, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil {
			return fmt.Errorf("%w: coordinatorIndex %q", model.ErrInvalidValue, value)
		}
		err = s.SetCoordinatorIndex(i)
	case model.FieldTravelMode:
		err = s.SetTravelMode(model.TravelMode(value))
	case model.FieldArrivalDate:
		s.state.ArrivalDate = strings.TrimSpace(value)
	case model.FieldArrivalTime:
		s.state.ArrivalTime = strings.TrimSpace(value)
	case model.FieldArrivalLocation:
		err = s.SetArrivalLocation(value)
	case model.FieldNeedPickup:
		b, convErr := strconv.ParseBool(strings.TrimSpace(value))
		if convErr != nil {
			return fmt.Errorf("%w: needPickup %q", model.ErrInvalidValue, value)
		}
		s.SetNeedPickup(b)
	case model.FieldAccommodation:
		err = s.SetAccommodation(value)
	case model.FieldDepartureDetails:
		s.state.DepartureDetails = strings.TrimSpace(value)
	case model.FieldHardDrinkCount:
		err = s.SetHardDrinkCount(value)
	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownField, field)
	}
	if err != nil {
		return err
	}
	if field.Derives() {
		s.Derive()
	}
	return nil
}

// setTravelType picks the branch. The type cannot be cleared once chosen.
func (s *Store) setTravelType(t model.TravelType) error {
	if t != model.TravelTypeSolo && t != model.TravelTypeGroup {
		return fmt.Errorf("%w: travelType %q", model.ErrInvalidValue, t)
	}
	s.state.TravelType = t
	return nil
}

// SetPhone keeps only digits, at most PhoneLength of them
func (s *Store) SetPhone(phone string) {
	s.state.Phone = NormalizePhone(phone)
}

func (s *Store) setGuestCount(n int) error {
	if n < model.MinGuestCount || n > model.MaxGuestCount {
		return fmt.Errorf("%w: guestCount %d not in %d..%d", model.ErrInvalidValue, n, model.MinGuestCount, model.MaxGuestCount)
	}
	s.state.GuestCount = n
	return nil
}

func (s *Store) SetCoordinatorIndex(i int) error {
	if i < 0 || i >= len(s.state.GuestNames) {
		return fmt.Errorf("%w: coordinatorIndex %d with %d guests", model.ErrIndexOutOfRange, i, len(s.state.GuestNames))
	}
	s.state.CoordinatorIndex = i
	return nil
}

func (s *Store) SetTravelMode(m model.TravelMode) error {
	if !model.IsTravelMode(m) {
		return fmt.Errorf("%w: travelMode %q", model.ErrInvalidValue, m)
	}
	s.state.TravelMode = m
	return nil
}

func (s *Store) SetArrivalLocation(location string) error {
	location = strings.TrimSpace(location)
	if location != "" && !model.IsArrivalPoint(location) {
		return fmt.Errorf("%w: arrivalLocation %q", model.ErrInvalidValue, location)
	}
	s.state.ArrivalLocation = location
	return nil
}

func (s *Store) SetNeedPickup(b bool) {
	s.state.NeedPickup = b
}

func (s *Store) SetAccommodation(option string) error {
	if option != "" && !model.IsAccommodationOption(option) {
		return fmt.Errorf("%w: accommodation %q", model.ErrInvalidValue, option)
	}
	s.state.Accommodation = option
	return nil
}

func (s *Store) SetHardDrinkCount(count string) error {
	if !model.IsHardDrinkCount(count) {
		return fmt.Errorf("%w: hardDrinkCount %q", model.ErrInvalidValue, count)
	}
	s.state.HardDrinkCount = count
	return nil
}

// SetGuestName assigns one roster slot. Indices outside the roster are ignored and reported.
func (s *Store) SetGuestName(index int, name string) error {
	if index < 0 || index >= len(s.state.GuestNames) {
		return fmt.Errorf("%w: guest %d of %d", model.ErrIndexOutOfRange, index, len(s.state.GuestNames))
	}
	s.state.GuestNames[index] = name
	return nil
}

// ToggleEvent flips attendance for key
func (s *Store) ToggleEvent(key model.EventKey) error {
	switch key {
	case model.EventWedding:
		s.state.Events.Wedding = !s.state.Events.Wedding
	case model.EventReception:
		s.state.Events.Reception = !s.state.Events.Reception
	default:
		return fmt.Errorf("%w: event %q", model.ErrInvalidValue, key)
	}
	return nil
}

// Derive resynchronizes guestCount, guestNames and coordinatorIndex with travelType and name.
// Before the travel type is chosen the roster is sized like a group's, so guestNames always
// has guestCount entries.
func (s *Store) Derive() {
	st := &s.state
	switch st.TravelType {
	case model.TravelTypeSolo:
		st.GuestCount = 1
		st.GuestNames = []string{st.Name}
		st.CoordinatorIndex = 0
	default:
		names := make([]string, st.GuestCount)
		copy(names, st.GuestNames)
		if names[0] == "" && st.Name != "" {
			names[0] = st.Name
		}
		st.GuestNames = names
	}
	if st.CoordinatorIndex < 0 || st.CoordinatorIndex >= len(st.GuestNames) {
		st.CoordinatorIndex = 0
	}
}

// NormalizePhone drops non-digits and truncates to PhoneLength
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if b.Len() == model.PhoneLength {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidPhone reports whether phone is exactly PhoneLength ASCII digits
func IsValidPhone(phone string) bool {
	if len(phone) != model.PhoneLength {
		return false
	}
	for _, r := range phone {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// PhoneWellFormed accepts an absent phone or a complete one; the contact page still requires it
func PhoneWellFormed(phone string) bool {
	return phone == "" || IsValidPhone(phone)
}
