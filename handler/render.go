package handler

import (
	"fmt"
	"strconv"
	"strings"

	"RSVPBot/model"
	"RSVPBot/wizard"

	"github.com/go-telegram/bot/models"
)

const callbackPrefix = "rsvp:"

// Callback actions carried in inline button data as rsvp:<action>[:<arg>]
const (
	actionNext    = "next"
	actionBack    = "back"
	actionSubmit  = "submit"
	actionType    = "type"
	actionCount   = "count"
	actionCoord   = "coord"
	actionGuest   = "guest"
	actionEvent   = "event"
	actionMode    = "mode"
	actionArrival = "arrival"
	actionPickup  = "pickup"
	actionStay    = "stay"
	actionDrinks  = "drinks"
	actionEdit    = "edit"
)

func callbackData(action string, args ...string) string {
	return callbackPrefix + strings.Join(append([]string{action}, args...), ":")
}

// parseCallbackData splits rsvp:<action>[:<arg>]; ok is false for foreign data
func parseCallbackData(data string) (action string, arg string, ok bool) {
	rest, found := strings.CutPrefix(data, callbackPrefix)
	if !found || rest == "" {
		return "", "", false
	}
	action, arg, _ = strings.Cut(rest, ":")
	return action, arg, true
}

func button(text string, action string, args ...string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: callbackData(action, args...)}
}

func checked(on bool, label string) string {
	if on {
		return "✅ " + label
	}
	return label
}

var travelModeLabels = map[model.TravelMode]string{
	model.TravelModePersonal: "My Vehicle",
	model.TravelModeTrain:    "Train",
	model.TravelModeFlight:   "Flight",
	model.TravelModeBus:      "Bus",
}

var eventLabels = map[model.EventKey]string{
	model.EventWedding:   "The Wedding (Baraat) · Nov 30th · Sehore",
	model.EventReception: "Reception · Dec 2nd · Bhopal",
}

var hardDrinkLabels = map[string]string{
	"0":  "0 (Non-Alcoholic)",
	"1":  "1 Person",
	"2":  "2 People",
	"3":  "3 People",
	"4":  "4 People",
	"5+": "5+ People",
}

const introText = `Dear Family & Friends

We are counting down the days to celebrate with you!

To ensure your experience at the Wedding and Reception is seamless, please spare a moment to share your travel details.

RSVP Deadline: 28th Nov (Midnight)
Please fill this form by the 28th so we can finalize logistics and provide the best service for you.

A Humble Request
For responses received after the deadline or last-minute plans, we seek your kind support. While we will do our best, pre-arrangements for accommodation and transport might be limited due to late confirmation.`

const helpText = `Commands:
/start – Start the RSVP form, or show the current page.
/back – Go back one page.
/summary – Show what you have entered so far.
/restart – Discard your answers and start over.
/help – Show this message.`

// renderPage draws the current page of v as message text and inline keyboard
func renderPage(v wizard.View, us model.UserState) (string, *models.InlineKeyboardMarkup) {
	var b strings.Builder
	var rows [][]models.InlineKeyboardButton
	st := v.State

	if v.Page != model.PageIntro && v.Page != model.PageSuccess {
		fmt.Fprintf(&b, "Step %d · %s\n\n", v.Step, progressBar(v.Progress))
	}

	switch v.Page {
	case model.PageIntro:
		b.WriteString(introText)
		return b.String(), keyboard([]models.InlineKeyboardButton{button("I Understand, Let's Start", actionNext)})

	case model.PageTravelType:
		b.WriteString("Are you traveling alone or with a group?")
		rows = append(rows,
			[]models.InlineKeyboardButton{button(checked(st.TravelType == model.TravelTypeSolo, "Just Me"), actionType, string(model.TravelTypeSolo))},
			[]models.InlineKeyboardButton{button(checked(st.TravelType == model.TravelTypeGroup, "I'm with a Group / Family"), actionType, string(model.TravelTypeGroup))},
		)
		if st.TravelType == model.TravelTypeGroup {
			b.WriteString("\n\nImportant: To avoid double-booking, please ensure no one else from your group is filling this form. You will be the single point of contact (Coordinator) for your group.")
		}

	case model.PageContact:
		b.WriteString("Contact Details\n\n")
		fmt.Fprintf(&b, "Full name: %s\n", orDash(st.Name))
		fmt.Fprintf(&b, "Phone: %s\n", orDash(st.Phone))
		if !wizard.PhoneWellFormed(st.Phone) {
			b.WriteString("Please enter a valid 10-digit phone number.\n")
		}
		rows = append(rows, []models.InlineKeyboardButton{
			button("Edit name", actionEdit, string(model.FieldName)),
			button("Edit phone", actionEdit, string(model.FieldPhone)),
		})
		if st.TravelType == model.TravelTypeGroup {
			fmt.Fprintf(&b, "Total members (including you): %d\n", st.GuestCount)
			rows = append(rows, countRows(st.GuestCount)...)
		}

	case model.PageGuestRoster:
		b.WriteString("Who is traveling?\nPlease list names and tick the Coordinator.\n\n")
		for i, name := range st.GuestNames {
			marker := ""
			if i == st.CoordinatorIndex {
				marker = " (Coordinator)"
			}
			fmt.Fprintf(&b, "%d. %s%s\n", i+1, orDash(name), marker)
			idx := strconv.Itoa(i)
			rows = append(rows, []models.InlineKeyboardButton{
				button(fmt.Sprintf("Edit guest %d", i+1), actionGuest, idx),
				button(checked(i == st.CoordinatorIndex, "Coordinator"), actionCoord, idx),
			})
		}

	case model.PageEvents:
		b.WriteString("Events Attending\nTap to select every event you will join.")
		for _, key := range model.EventKeys {
			rows = append(rows, []models.InlineKeyboardButton{button(checked(st.Events.Has(key), eventLabels[key]), actionEvent, string(key))})
		}

	case model.PageTravelDetails:
		b.WriteString("Travel Details")
		var modes []models.InlineKeyboardButton
		for _, m := range model.TravelModes {
			modes = append(modes, button(checked(st.TravelMode == m, travelModeLabels[m]), actionMode, string(m)))
		}
		rows = append(rows, modes)
		switch {
		case st.TravelMode == model.TravelModePersonal:
			fmt.Fprintf(&b, "\n\nDrive directly to Sehore Venue on the 30th.\nLocation details will be sent to coordinator %s.", orYou(st.CoordinatorName()))
		case st.TravelMode.NeedsArrival():
			fmt.Fprintf(&b, "\n\nArrival date: %s\nArrival time: %s\nArrival point: %s\n", orDash(st.ArrivalDate), orDash(st.ArrivalTime), orDash(st.ArrivalLocation))
			rows = append(rows, []models.InlineKeyboardButton{
				button("Edit date", actionEdit, string(model.FieldArrivalDate)),
				button("Edit time", actionEdit, string(model.FieldArrivalTime)),
			})
			for i, p := range model.ArrivalPoints {
				rows = append(rows, []models.InlineKeyboardButton{button(checked(st.ArrivalLocation == p, p), actionArrival, strconv.Itoa(i))})
			}
			rows = append(rows, []models.InlineKeyboardButton{button(checked(st.NeedPickup, "We need pickup support"), actionPickup)})
		}

	case model.PagePreferences:
		b.WriteString("Preferences & Stay\n\nDo you need accommodation?")
		for i, o := range model.AccommodationOptions {
			rows = append(rows, []models.InlineKeyboardButton{button(checked(st.Accommodation == o, o), actionStay, strconv.Itoa(i))})
		}
		b.WriteString("\n\nParty Fuel & Spirits\nHow many in your group enjoy hard drinks?")
		var drinks []models.InlineKeyboardButton
		for _, c := range model.HardDrinkCounts {
			drinks = append(drinks, button(checked(st.HardDrinkCount == c, c), actionDrinks, c))
		}
		rows = append(rows, drinks)
		fmt.Fprintf(&b, "\nSelected: %s", hardDrinkLabels[st.HardDrinkCount])
		b.WriteString("\n\nDeparture plans? Send them as a message (optional).")
		if st.DepartureDetails != "" {
			fmt.Fprintf(&b, "\nDeparture: %s", st.DepartureDetails)
		}
		if v.SubmitError != "" {
			fmt.Fprintf(&b, "\n\n%s", v.SubmitError)
		}
		nav := []models.InlineKeyboardButton{button("Back", actionBack)}
		switch {
		case v.Submitting:
			b.WriteString("\n\nSubmitting...")
		case v.Valid:
			nav = append(nav, button("Submit", actionSubmit))
		}
		rows = append(rows, nav)
		return b.String(), keyboard(rows...)

	case model.PageSuccess:
		fmt.Fprintf(&b, "You're All Set!\n\nWe have noted that %s is the coordinator.\nDetails will be sent shortly. Can't wait to celebrate!", st.CoordinatorName())
		return b.String(), nil

	default:
		b.WriteString("Something went wrong. Use /restart to start over.")
		return b.String(), nil
	}

	if prompt := promptFor(us); prompt != "" {
		b.WriteString("\n\n" + prompt)
	}

	nav := []models.InlineKeyboardButton{button("Back", actionBack)}
	if v.Valid {
		nav = append(nav, button("Next", actionNext))
	}
	rows = append(rows, nav)
	return b.String(), keyboard(rows...)
}

// promptFor asks for the awaited free-text answer
func promptFor(us model.UserState) string {
	switch us.Awaiting {
	case model.InputName:
		return "Please send your full name."
	case model.InputPhone:
		return "Please send your 10-digit phone number."
	case model.InputGuestName:
		return fmt.Sprintf("Please send the name of guest %d.", us.GuestIndex+1)
	case model.InputArrivalDate:
		return "Please send your arrival date (e.g. 2025-11-29)."
	case model.InputArrivalTime:
		return "Please send your arrival time (e.g. 14:30), or - to skip."
	default:
		return ""
	}
}

func countRows(selected int) [][]models.InlineKeyboardButton {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for n := model.MinGuestCount; n <= model.MaxGuestCount; n++ {
		row = append(row, button(checked(n == selected, strconv.Itoa(n)), actionCount, strconv.Itoa(n)))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func keyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func progressBar(p float64) string {
	const width = 10
	filled := int(p*width + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "–"
	}
	return s
}

func orYou(s string) string {
	if s == "" {
		return "you"
	}
	return s
}

// renderSummary lists the record collected so far
func renderSummary(st model.FormState) string {
	var b strings.Builder
	b.WriteString("Your answers so far:\n")
	fmt.Fprintf(&b, "Travel: %s\n", orDash(string(st.TravelType)))
	fmt.Fprintf(&b, "Name: %s\nPhone: %s\n", orDash(st.Name), orDash(st.Phone))
	if st.TravelType == model.TravelTypeGroup {
		fmt.Fprintf(&b, "Guests (%d): %s\n", st.GuestCount, strings.Join(st.GuestNames, ", "))
		fmt.Fprintf(&b, "Coordinator: %s\n", orDash(st.CoordinatorName()))
	}
	var events []string
	for _, key := range model.EventKeys {
		if st.Events.Has(key) {
			events = append(events, string(key))
		}
	}
	fmt.Fprintf(&b, "Events: %s\n", orDash(strings.Join(events, ", ")))
	fmt.Fprintf(&b, "Travel mode: %s\n", orDash(travelModeLabels[st.TravelMode]))
	if st.TravelMode.NeedsArrival() {
		fmt.Fprintf(&b, "Arrival: %s %s at %s (pickup: %t)\n", orDash(st.ArrivalDate), st.ArrivalTime, orDash(st.ArrivalLocation), st.NeedPickup)
	}
	fmt.Fprintf(&b, "Accommodation: %s\n", orDash(st.Accommodation))
	fmt.Fprintf(&b, "Hard drinks: %s", hardDrinkLabels[st.HardDrinkCount])
	return b.String()
}
