package model

// Page is a logical wizard page, independent of the step index it is shown at
type Page uint8

const (
	PageUnknown Page = iota
	PageIntro
	PageTravelType
	PageContact
	PageGuestRoster
	PageEvents
	PageTravelDetails
	PagePreferences
	PageSuccess
)

// String returns the string representation of Page
func (p Page) String() string {
	switch p {
	case PageIntro:
		return "intro"
	case PageTravelType:
		return "travel-type"
	case PageContact:
		return "contact"
	case PageGuestRoster:
		return "guest-roster"
	case PageEvents:
		return "events"
	case PageTravelDetails:
		return "travel-details"
	case PagePreferences:
		return "preferences"
	case PageSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalText lets views carry the page name instead of its ordinal
func (p Page) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

var (
	groupPages = []Page{PageIntro, PageTravelType, PageContact, PageGuestRoster, PageEvents, PageTravelDetails, PagePreferences, PageSuccess}
	soloPages  = []Page{PageIntro, PageTravelType, PageContact, PageEvents, PageTravelDetails, PagePreferences, PageSuccess}
	// Before the branch point only the shared prefix is known.
	unsetPages = []Page{PageIntro, PageTravelType, PageContact}
)

// Pages returns the page sequence for a travel type
func Pages(t TravelType) []Page {
	switch t {
	case TravelTypeGroup:
		return groupPages
	case TravelTypeSolo:
		return soloPages
	default:
		return unsetPages
	}
}

// PageFor maps a step index to the page shown there
func PageFor(step int, t TravelType) Page {
	pages := Pages(t)
	if step < 0 || step >= len(pages) {
		return PageUnknown
	}
	return pages[step]
}

// StepFor is the inverse of PageFor; ok is false when the page is not part of the sequence
func StepFor(page Page, t TravelType) (int, bool) {
	for i, p := range Pages(t) {
		if p == page {
			return i, true
		}
	}
	return 0, false
}

// SuccessStep is the terminal step index for t, one past the preferences page
func SuccessStep(t TravelType) int {
	if step, ok := StepFor(PageSuccess, t); ok {
		return step
	}
	return len(groupPages) - 1
}
