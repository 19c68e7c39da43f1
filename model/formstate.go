package model

// TravelType decides which pages the wizard walks through
type TravelType string

const (
	TravelTypeUnset TravelType = ""
	TravelTypeSolo  TravelType = "solo"
	TravelTypeGroup TravelType = "group"
)

// TravelMode is how the invitee reaches the venue
type TravelMode string

const (
	TravelModeUnset    TravelMode = ""
	TravelModePersonal TravelMode = "personal"
	TravelModeTrain    TravelMode = "train"
	TravelModeFlight   TravelMode = "flight"
	TravelModeBus      TravelMode = "bus"
)

// NeedsArrival reports whether arrival date and location have to be collected for the mode
func (m TravelMode) NeedsArrival() bool {
	return m != TravelModeUnset && m != TravelModePersonal
}

// EventKey identifies one of the celebrations an invitee can attend
type EventKey string

const (
	EventWedding   EventKey = "wedding"
	EventReception EventKey = "reception"
)

const (
	MinGuestCount = 1
	MaxGuestCount = 10
	PhoneLength   = 10

	DefaultHardDrinkCount = "0"
)

var TravelModes = []TravelMode{TravelModePersonal, TravelModeTrain, TravelModeFlight, TravelModeBus}

var EventKeys = []EventKey{EventWedding, EventReception}

var ArrivalPoints = []string{
	"Bhopal Airport",
	"Rani Kamlapati Station",
	"Bhopal Junction",
	"Nadra Bus Stand",
}

var AccommodationOptions = []string{
	"Yes (30th Nov - 2nd Dec)",
	"Sehore only (30th Nov)",
	"Bhopal only (2nd Dec)",
	"No, own arrangements",
}

var HardDrinkCounts = []string{"0", "1", "2", "3", "4", "5+"}

// Events holds attendance flags, serialized as a nested object of booleans
type Events struct {
	Wedding   bool `json:"wedding"`
	Reception bool `json:"reception"`
}

// Any reports whether at least one event is selected
func (e Events) Any() bool {
	return e.Wedding || e.Reception
}

// Has reports membership of key
func (e Events) Has(key EventKey) bool {
	switch key {
	case EventWedding:
		return e.Wedding
	case EventReception:
		return e.Reception
	default:
		return false
	}
}

// FormState is the single record collected by the wizard and sent to the sink
type FormState struct {
	TravelType       TravelType `json:"travelType"`
	Name             string     `json:"name"`
	Phone            string     `json:"phone"`
	GuestCount       int        `json:"guestCount"`
	GuestNames       []string   `json:"guestNames"`
	CoordinatorIndex int        `json:"coordinatorIndex"`
	Events           Events     `json:"events"`
	TravelMode       TravelMode `json:"travelMode"`
	ArrivalDate      string     `json:"arrivalDate"`
	ArrivalTime      string     `json:"arrivalTime"`
	ArrivalLocation  string     `json:"arrivalLocation"`
	NeedPickup       bool       `json:"needPickup"`
	Accommodation    string     `json:"accommodation"`
	DepartureDetails string     `json:"departureDetails"`
	HardDrinkCount   string     `json:"hardDrinkCount"`
}

// NewFormState returns the record a session starts with
func NewFormState() FormState {
	return FormState{
		GuestCount:     MinGuestCount,
		GuestNames:     []string{""},
		HardDrinkCount: DefaultHardDrinkCount,
	}
}

// Clone returns a copy that shares no slices with s
func (s FormState) Clone() FormState {
	c := s
	c.GuestNames = append([]string(nil), s.GuestNames...)
	return c
}

// CoordinatorName is the name of the single point of contact
func (s FormState) CoordinatorName() string {
	if s.TravelType == TravelTypeGroup && s.CoordinatorIndex >= 0 && s.CoordinatorIndex < len(s.GuestNames) {
		return s.GuestNames[s.CoordinatorIndex]
	}
	return s.Name
}

// SubmissionAck is the structured reply of a sink
type SubmissionAck struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

const AckSuccess = "success"

// Accepted reports whether the sink recorded the submission
func (a SubmissionAck) Accepted() bool {
	return a.Result == AckSuccess
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTravelMode reports whether m is one of the selectable modes
func IsTravelMode(m TravelMode) bool {
	return contains(TravelModes, m)
}

// IsEventKey reports whether k names a known event
func IsEventKey(k EventKey) bool {
	return contains(EventKeys, k)
}

// IsArrivalPoint reports whether p is one of the fixed arrival points
func IsArrivalPoint(p string) bool {
	return contains(ArrivalPoints, p)
}

// IsAccommodationOption reports whether o is one of the fixed accommodation answers
func IsAccommodationOption(o string) bool {
	return contains(AccommodationOptions, o)
}

// IsHardDrinkCount reports whether c is one of the party-fuel answers
func IsHardDrinkCount(c string) bool {
	return contains(HardDrinkCounts, c)
}
