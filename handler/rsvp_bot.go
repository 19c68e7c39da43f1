package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"RSVPBot/model"
	"RSVPBot/wizard"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
)

// messenger is the part of *bot.Bot the RSVP flow talks to
type messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var errStaleButton = errors.New("button belongs to another page")

// chatSession pairs a wizard with the chat-side input state
type chatSession struct {
	mu         sync.Mutex
	controller *wizard.Controller
	state      model.UserState
}

type RSVPBotHandler struct {
	l        zerolog.Logger
	sink     wizard.Sink
	mu       sync.Mutex
	sessions map[int64]*chatSession
}

func NewRSVPBotHandler(l zerolog.Logger, sink wizard.Sink) *RSVPBotHandler {
	return &RSVPBotHandler{
		l:        l,
		sink:     sink,
		sessions: make(map[int64]*chatSession),
	}
}

// Handler is registered as the bot's default handler
func (h *RSVPBotHandler) Handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handle(ctx, b, update)
}

func (h *RSVPBotHandler) handle(ctx context.Context, m messenger, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, m, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		h.handleMessage(ctx, m, update.Message)
	}
}

// session returns the user's session, creating one when fresh is set or none exists.
// Replies follow the user to chatID.
func (h *RSVPBotHandler) session(userID int64, chatID int64, fresh bool) *chatSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[userID]
	if !ok || fresh {
		s = &chatSession{
			controller: wizard.NewController(h.l.With().Int64("userId", userID).Logger(), h.sink),
			state:      model.UserState{ChatID: chatID},
		}
		h.sessions[userID] = s
		return s
	}
	s.moveTo(chatID)
	return s
}

func (h *RSVPBotHandler) existingSession(userID int64, chatID int64) (*chatSession, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[userID]
	if ok {
		s.moveTo(chatID)
	}
	return s, ok
}

func (s *chatSession) moveTo(chatID int64) {
	s.mu.Lock()
	s.state.ChatID = chatID
	s.mu.Unlock()
}

func (h *RSVPBotHandler) handleMessage(ctx context.Context, m messenger, msg *models.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	h.l.Debug().Int64("userId", userID).Str("text", text).Msg("Received message.")

	switch text {
	case "/start":
		h.sendPage(ctx, m, h.session(userID, chatID, false))
		return
	case "/restart":
		h.sendPage(ctx, m, h.session(userID, chatID, true))
		return
	case "/help":
		h.send(ctx, m, chatID, helpText, nil)
		return
	}

	s, ok := h.existingSession(userID, chatID)
	if !ok {
		h.send(ctx, m, chatID, "Use /start to begin your RSVP.", nil)
		return
	}

	switch text {
	case "/summary":
		h.send(ctx, m, chatID, renderSummary(s.controller.State()), nil)
		return
	case "/back":
		s.mu.Lock()
		err := h.apply(s, actionBack, "")
		s.mu.Unlock()
		if err != nil {
			h.send(ctx, m, chatID, noticeFor(err), nil)
			return
		}
		h.sendPage(ctx, m, s)
		return
	}

	s.mu.Lock()
	notice, err := h.answer(s, text)
	s.mu.Unlock()
	if err != nil {
		h.l.Debug().Err(err).Int64("userId", userID).Msg("Rejected answer.")
		notice = noticeFor(err)
	}
	if notice != "" {
		h.send(ctx, m, chatID, notice, nil)
	}
	h.sendPage(ctx, m, s)
}

func (h *RSVPBotHandler) handleCallback(ctx context.Context, m messenger, q *models.CallbackQuery) {
	userID := q.From.ID
	chatID := userID
	if q.Message.Message != nil {
		chatID = q.Message.Message.Chat.ID
	}
	h.l.Debug().Int64("userId", userID).Str("data", q.Data).Msg("Received callback.")

	action, arg, ok := parseCallbackData(q.Data)
	if !ok {
		h.answerCallback(ctx, m, q.ID, "")
		return
	}
	s := h.session(userID, chatID, false)

	if action == actionSubmit {
		h.answerCallback(ctx, m, q.ID, "Submitting...")
		if err := h.submit(ctx, s); err != nil {
			if errors.Is(err, model.ErrSubmissionInProgress) {
				return
			}
			h.l.Debug().Err(err).Int64("userId", userID).Msg("Submission did not succeed.")
		}
		h.sendPage(ctx, m, s)
		return
	}

	s.mu.Lock()
	err := h.apply(s, action, arg)
	s.mu.Unlock()
	if err != nil {
		h.l.Debug().Err(err).Int64("userId", userID).Str("action", action).Msg("Rejected action.")
		h.answerCallback(ctx, m, q.ID, noticeFor(err))
		if errors.Is(err, errStaleButton) {
			return
		}
	} else {
		h.answerCallback(ctx, m, q.ID, "")
	}
	h.sendPage(ctx, m, s)
}

func (h *RSVPBotHandler) submit(ctx context.Context, s *chatSession) error {
	if s.controller.Page() != model.PagePreferences {
		return errStaleButton
	}
	err := s.controller.Submit(ctx)
	s.mu.Lock()
	s.state.Awaiting, s.state.GuestIndex = awaitingFor(s.controller.Page(), s.controller.State())
	s.mu.Unlock()
	return err
}

// actionPages names the page each button is drawn on
var actionPages = map[string]model.Page{
	actionType:    model.PageTravelType,
	actionCount:   model.PageContact,
	actionCoord:   model.PageGuestRoster,
	actionGuest:   model.PageGuestRoster,
	actionEvent:   model.PageEvents,
	actionMode:    model.PageTravelDetails,
	actionArrival: model.PageTravelDetails,
	actionPickup:  model.PageTravelDetails,
	actionStay:    model.PagePreferences,
	actionDrinks:  model.PagePreferences,
}

var editInputs = map[model.Field]struct {
	page  model.Page
	input model.Input
}{
	model.FieldName:        {model.PageContact, model.InputName},
	model.FieldPhone:       {model.PageContact, model.InputPhone},
	model.FieldArrivalDate: {model.PageTravelDetails, model.InputArrivalDate},
	model.FieldArrivalTime: {model.PageTravelDetails, model.InputArrivalTime},
}

// apply performs a button action; the caller holds s.mu
func (h *RSVPBotHandler) apply(s *chatSession, action string, arg string) error {
	c := s.controller
	if page, ok := actionPages[action]; ok && c.Page() != page {
		return errStaleButton
	}

	switch action {
	case actionNext, actionBack:
		if arg != "" && arg != strconv.Itoa(c.Step()) {
			return errStaleButton
		}
		var err error
		if action == actionNext {
			err = c.Next()
		} else {
			err = c.Back()
		}
		if err != nil {
			return err
		}
		s.state.Awaiting, s.state.GuestIndex = awaitingFor(c.Page(), c.State())
		return nil
	case actionType:
		return c.SetField(model.FieldTravelType, arg)
	case actionCount:
		return c.SetField(model.FieldGuestCount, arg)
	case actionCoord:
		return c.SetField(model.FieldCoordinatorIndex, arg)
	case actionGuest:
		i, err := strconv.Atoi(arg)
		if err != nil || i < 0 || i >= len(c.State().GuestNames) {
			return fmt.Errorf("%w: guest %q", model.ErrIndexOutOfRange, arg)
		}
		s.state.Awaiting, s.state.GuestIndex = model.InputGuestName, i
		return nil
	case actionEvent:
		return c.ToggleEvent(model.EventKey(arg))
	case actionMode:
		if err := c.SetField(model.FieldTravelMode, arg); err != nil {
			return err
		}
		s.state.Awaiting, s.state.GuestIndex = awaitingFor(c.Page(), c.State())
		return nil
	case actionArrival:
		point, err := option(model.ArrivalPoints, arg)
		if err != nil {
			return err
		}
		return c.SetField(model.FieldArrivalLocation, point)
	case actionPickup:
		return c.SetField(model.FieldNeedPickup, strconv.FormatBool(!c.State().NeedPickup))
	case actionStay:
		stay, err := option(model.AccommodationOptions, arg)
		if err != nil {
			return err
		}
		return c.SetField(model.FieldAccommodation, stay)
	case actionDrinks:
		return c.SetField(model.FieldHardDrinkCount, arg)
	case actionEdit:
		edit, ok := editInputs[model.Field(arg)]
		if !ok {
			return fmt.Errorf("%w: %q", model.ErrUnknownField, arg)
		}
		if c.Page() != edit.page {
			return errStaleButton
		}
		s.state.Awaiting = edit.input
		return nil
	default:
		return fmt.Errorf("%w: action %q", model.ErrInvalidValue, action)
	}
}

// answer routes free text to the awaited field; the caller holds s.mu
func (h *RSVPBotHandler) answer(s *chatSession, text string) (string, error) {
	c := s.controller
	switch s.state.Awaiting {
	case model.InputName:
		if text == "" {
			return "Please send your full name.", nil
		}
		if err := c.SetField(model.FieldName, text); err != nil {
			return "", err
		}
	case model.InputPhone:
		if err := c.SetField(model.FieldPhone, text); err != nil {
			return "", err
		}
		if !wizard.IsValidPhone(c.State().Phone) {
			return "Please enter a valid 10-digit phone number.", nil
		}
	case model.InputGuestName:
		if strings.TrimSpace(text) == "" {
			return "Please send a name.", nil
		}
		if err := c.SetGuestName(s.state.GuestIndex, text); err != nil {
			return "", err
		}
	case model.InputArrivalDate:
		date, err := parseArrivalDate(text)
		if err != nil {
			return "Please send the date as YYYY-MM-DD.", nil
		}
		if err := c.SetField(model.FieldArrivalDate, date); err != nil {
			return "", err
		}
		s.state.Awaiting = model.InputArrivalTime
		return "", nil
	case model.InputArrivalTime:
		arrival := ""
		if text != "-" {
			t, err := parseArrivalTime(text)
			if err != nil {
				return "Please send the time as HH:MM, or - to skip.", nil
			}
			arrival = t
		}
		if err := c.SetField(model.FieldArrivalTime, arrival); err != nil {
			return "", err
		}
		s.state.Awaiting = model.InputNone
		return "", nil
	case model.InputDepartureDetails:
		if err := c.SetField(model.FieldDepartureDetails, text); err != nil {
			return "", err
		}
		return "Departure details noted.", nil
	default:
		return "Please use the buttons below.", nil
	}
	s.state.Awaiting, s.state.GuestIndex = awaitingFor(c.Page(), c.State())
	return "", nil
}

// awaitingFor picks the first unanswered free-text field of a page
func awaitingFor(page model.Page, st model.FormState) (model.Input, int) {
	switch page {
	case model.PageContact:
		if st.Name == "" {
			return model.InputName, 0
		}
		if !wizard.IsValidPhone(st.Phone) {
			return model.InputPhone, 0
		}
	case model.PageGuestRoster:
		for i, name := range st.GuestNames {
			if strings.TrimSpace(name) == "" {
				return model.InputGuestName, i
			}
		}
	case model.PageTravelDetails:
		// The optional time is asked once, right after the date.
		if st.TravelMode.NeedsArrival() && st.ArrivalDate == "" {
			return model.InputArrivalDate, 0
		}
	case model.PagePreferences:
		return model.InputDepartureDetails, 0
	}
	return model.InputNone, 0
}

func option(options []string, arg string) (string, error) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(options) {
		return "", fmt.Errorf("%w: option %q", model.ErrIndexOutOfRange, arg)
	}
	return options[i], nil
}

var (
	dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "2 Jan 2006", "2 January 2006"}
	timeLayouts = []string{"15:04", "3:04PM", "3:04 PM", "3PM", "3 PM"}
)

// parseArrivalDate accepts a few common spellings and normalizes to YYYY-MM-DD
func parseArrivalDate(text string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%w: date %q", model.ErrInvalidValue, text)
}

// parseArrivalTime normalizes to 24-hour HH:MM
func parseArrivalTime(text string) (string, error) {
	upper := strings.ToUpper(text)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, upper); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("%w: time %q", model.ErrInvalidValue, text)
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, errStaleButton):
		return "This button has expired."
	case errors.Is(err, model.ErrStepInvalid):
		return "Please complete this page first."
	case errors.Is(err, model.ErrSubmitRequired):
		return "Please submit the form."
	case errors.Is(err, model.ErrTopologyLocked):
		return "Go back to change whether you travel alone or with a group."
	case errors.Is(err, model.ErrSubmissionInProgress):
		return "Submitting..."
	case errors.Is(err, model.ErrAlreadySubmitted):
		return "Your RSVP is already submitted. Use /restart to send another."
	case errors.Is(err, model.ErrSubmissionRejected):
		return model.MsgSubmitFailed
	case errors.Is(err, model.ErrSinkUnavailable), errors.Is(err, model.ErrMalformedAck):
		return model.MsgNetworkError
	default:
		return "That option is not available."
	}
}

func (h *RSVPBotHandler) sendPage(ctx context.Context, m messenger, s *chatSession) {
	s.mu.Lock()
	us := s.state
	s.mu.Unlock()
	v := s.controller.View()
	text, kb := renderPage(v, us)
	if kb != nil {
		stampNavigation(kb, v.Step)
	}
	h.send(ctx, m, us.ChatID, text, kb)
}

// stampNavigation binds Next and Back to the step they were drawn on
func stampNavigation(kb *models.InlineKeyboardMarkup, step int) {
	for _, row := range kb.InlineKeyboard {
		for i := range row {
			switch row[i].CallbackData {
			case callbackData(actionNext), callbackData(actionBack):
				row[i].CallbackData += ":" + strconv.Itoa(step)
			}
		}
	}
}

func (h *RSVPBotHandler) send(ctx context.Context, m messenger, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if kb != nil && len(kb.InlineKeyboard) > 0 {
		params.ReplyMarkup = kb
	}
	if _, err := m.SendMessage(ctx, params); err != nil {
		h.l.Error().Err(err).Int64("chatId", chatID).Msg("Error sending message.")
	}
}

func (h *RSVPBotHandler) answerCallback(ctx context.Context, m messenger, id string, text string) {
	_, err := m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: id,
		Text:            text,
	})
	if err != nil {
		h.l.Error().Err(err).Msg("Error answering callback query.")
	}
}
