package model

// Field names a scalar member of FormState, spelled as in the submitted record
type Field string

const (
	FieldTravelType       Field = "travelType"
	FieldName             Field = "name"
	FieldPhone            Field = "phone"
	FieldGuestCount       Field = "guestCount"
	FieldCoordinatorIndex Field = "coordinatorIndex"
	FieldTravelMode       Field = "travelMode"
	FieldArrivalDate      Field = "arrivalDate"
	FieldArrivalTime      Field = "arrivalTime"
	FieldArrivalLocation  Field = "arrivalLocation"
	FieldNeedPickup       Field = "needPickup"
	FieldAccommodation    Field = "accommodation"
	FieldDepartureDetails Field = "departureDetails"
	FieldHardDrinkCount   Field = "hardDrinkCount"
)

// Derives reports whether a change of f has to be followed by guest list derivation
func (f Field) Derives() bool {
	return f == FieldTravelType || f == FieldGuestCount || f == FieldName
}
