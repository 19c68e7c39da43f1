package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"RSVPBot/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sink records a finished form. A returned error means the request could not complete;
// an ack that is not accepted means the sink answered and declined.
type Sink interface {
	Submit(ctx context.Context, sessionID uuid.UUID, state model.FormState) (model.SubmissionAck, error)
}

// View is what a rendering layer needs to draw the current page
type View struct {
	SessionID   uuid.UUID       `json:"sessionId"`
	Step        int             `json:"step"`
	Page        model.Page      `json:"page"`
	Valid       bool            `json:"valid"`
	Progress    float64         `json:"progress"`
	Submitting  bool            `json:"submitting"`
	SubmitError string          `json:"submitError,omitempty"`
	State       model.FormState `json:"state"`
}

// travelTypeStep is the branch point; it is the same in every topology
var travelTypeStep, _ = model.StepFor(model.PageTravelType, model.TravelTypeUnset)

// Controller drives one invitee through the wizard
type Controller struct {
	mu          sync.Mutex
	l           zerolog.Logger
	id          uuid.UUID
	store       *Store
	sink        Sink
	step        int
	submitting  bool
	submitError string
}

func NewController(l zerolog.Logger, sink Sink) *Controller {
	id := uuid.New()
	return &Controller{
		l:     l.With().Str("sessionId", id.String()).Logger(),
		id:    id,
		store: NewStore(),
		sink:  sink,
	}
}

func (c *Controller) ID() uuid.UUID {
	return c.id
}

func (c *Controller) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) Page() model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.PageFor(c.step, c.store.state.TravelType)
}

func (c *Controller) State() model.FormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.State()
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitting
}

func (c *Controller) SubmitError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitError
}

// Done reports whether the success page has been reached
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done()
}

func (c *Controller) done() bool {
	return model.PageFor(c.step, c.store.state.TravelType) == model.PageSuccess
}

// Progress is the fraction of the way to the success page
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress()
}

func (c *Controller) progress() float64 {
	return float64(c.step) / float64(model.SuccessStep(c.store.state.TravelType))
}

// CoordinatorName is the contact person named on the success page
func (c *Controller) CoordinatorName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.state.CoordinatorName()
}

// View captures everything a rendering layer displays, consistently
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		SessionID:   c.id,
		Step:        c.step,
		Page:        model.PageFor(c.step, c.store.state.TravelType),
		Valid:       c.isValid(c.step),
		Progress:    c.progress(),
		Submitting:  c.submitting,
		SubmitError: c.submitError,
		State:       c.store.State(),
	}
}

// IsValid evaluates the gate of step against the current record
func (c *Controller) IsValid(step int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isValid(step)
}

func (c *Controller) isValid(step int) bool {
	st := &c.store.state
	return PageValid(model.PageFor(step, st.TravelType), st)
}

// PageValid is the forward-navigation gate of a logical page
func PageValid(page model.Page, st *model.FormState) bool {
	switch page {
	case model.PageIntro:
		return true
	case model.PageTravelType:
		return st.TravelType == model.TravelTypeSolo || st.TravelType == model.TravelTypeGroup
	case model.PageContact:
		return st.Name != "" && IsValidPhone(st.Phone) &&
			(st.TravelType == model.TravelTypeSolo || st.GuestCount >= model.MinGuestCount)
	case model.PageGuestRoster:
		for _, name := range st.GuestNames {
			if strings.TrimSpace(name) == "" {
				return false
			}
		}
		return st.CoordinatorIndex >= 0 && st.CoordinatorIndex < len(st.GuestNames)
	case model.PageEvents:
		return st.Events.Any()
	case model.PageTravelDetails:
		if st.TravelMode == model.TravelModeUnset {
			return false
		}
		if st.TravelMode == model.TravelModePersonal {
			return true
		}
		return st.ArrivalDate != "" && st.ArrivalLocation != ""
	case model.PagePreferences:
		return st.Accommodation != ""
	default:
		return true
	}
}

// guard rejects interaction while a submission is outstanding or after it succeeded
func (c *Controller) guard() error {
	if c.submitting {
		return model.ErrSubmissionInProgress
	}
	if c.done() {
		return model.ErrAlreadySubmitted
	}
	return nil
}

// Next moves forward one step when the current page is valid
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	page := model.PageFor(c.step, c.store.state.TravelType)
	if page == model.PagePreferences {
		return model.ErrSubmitRequired
	}
	if !c.isValid(c.step) {
		return fmt.Errorf("%w: %s", model.ErrStepInvalid, page)
	}
	c.step++
	c.l.Debug().Int("step", c.step).Str("page", model.PageFor(c.step, c.store.state.TravelType).String()).Msg("Advanced wizard.")
	return nil
}

// Back moves one step backwards without validation. It does nothing on the first step.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	if c.step == 0 {
		return nil
	}
	c.step--
	c.l.Debug().Int("step", c.step).Str("page", model.PageFor(c.step, c.store.state.TravelType).String()).Msg("Went back in wizard.")
	return nil
}

func (c *Controller) mutate(f func(s *Store) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guard(); err != nil {
		return err
	}
	return f(c.store)
}

// SetField assigns a scalar field. The travel type is fixed once the wizard is past the
// travel type page, since it decides which page every later step shows.
func (c *Controller) SetField(field model.Field, value string) error {
	return c.mutate(func(s *Store) error {
		if field == model.FieldTravelType && c.step > travelTypeStep {
			return model.ErrTopologyLocked
		}
		return s.SetField(field, value)
	})
}

func (c *Controller) SetGuestName(index int, name string) error {
	return c.mutate(func(s *Store) error {
		return s.SetGuestName(index, name)
	})
}

func (c *Controller) ToggleEvent(key model.EventKey) error {
	return c.mutate(func(s *Store) error {
		return s.ToggleEvent(key)
	})
}

// Submit sends the record to the sink. It blocks until the sink resolves and cannot be
// cancelled once issued. A second call while one is outstanding is rejected.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guard(); err != nil {
		c.mu.Unlock()
		return err
	}
	page := model.PageFor(c.step, c.store.state.TravelType)
	if page != model.PagePreferences || !c.isValid(c.step) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", model.ErrStepInvalid, page)
	}
	c.submitting = true
	c.submitError = ""
	state := c.store.State()
	c.mu.Unlock()

	c.l.Info().Str("travelType", string(state.TravelType)).Int("guestCount", state.GuestCount).Msg("Submitting RSVP.")
	ack, err := c.sink.Submit(context.WithoutCancel(ctx), c.id, state)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.submitError = model.MsgNetworkError
		c.l.Error().Err(err).Msg("Unable to reach submission sink.")
		if errors.Is(err, model.ErrSinkUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", model.ErrSinkUnavailable, err)
	}
	if !ack.Accepted() {
		c.submitError = model.MsgSubmitFailed
		c.l.Warn().Str("result", ack.Result).Str("error", ack.Error).Msg("Submission declined by sink.")
		return model.ErrSubmissionRejected
	}
	c.step = model.SuccessStep(c.store.state.TravelType)
	c.l.Info().Msg("RSVP submitted.")
	return nil
}
