package model

// Input is the free-text answer a chat is waiting for
type Input uint8

const (
	InputNone Input = iota
	InputName
	InputPhone
	InputGuestName
	InputArrivalDate
	InputArrivalTime
	InputDepartureDetails
)

// UserState is the per-chat state the bot keeps next to the wizard
type UserState struct {
	ChatID     int64
	Awaiting   Input
	GuestIndex int // roster slot for InputGuestName
}
