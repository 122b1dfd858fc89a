package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/autopodbor/intake-bot/internal/domain"
	"github.com/autopodbor/intake-bot/internal/identity"
	"github.com/autopodbor/intake-bot/internal/phone"
	"github.com/autopodbor/intake-bot/internal/recommend"
	"github.com/autopodbor/intake-bot/internal/session"
	"github.com/autopodbor/intake-bot/internal/sheetsync"
)

// Accepted range for the maximum production year.
const (
	MinYear = 1990
	MaxYear = 2025
)

// Options configures an Engine.
type Options struct {
	Sessions *session.Store
	// Detector may be nil, which disables remote sync.
	Detector *sheetsync.ChangeDetector
	// Recommender is optional.
	Recommender recommend.Recommender

	CountdownSteps    int
	CountdownInterval time.Duration

	// OnTransition observes every accepted state change.
	OnTransition func(ctx context.Context, t Transition)
	Logger       *slog.Logger
}

// Engine is the intake state machine. Handle must not be called concurrently
// for the same identity; Mailbox provides that ordering.
type Engine struct {
	sessions          *session.Store
	detector          *sheetsync.ChangeDetector
	recommender       recommend.Recommender
	countdownSteps    int
	countdownInterval time.Duration
	onTransition      func(ctx context.Context, t Transition)
	logger            *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		sessions:          opts.Sessions,
		detector:          opts.Detector,
		recommender:       opts.Recommender,
		countdownSteps:    max(opts.CountdownSteps, 0),
		countdownInterval: opts.CountdownInterval,
		onTransition:      opts.OnTransition,
		logger:            opts.Logger,
	}
}

// Sessions returns the session store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Handle processes one inbound event and returns the resulting state. Input
// that fails validation re-prompts the current state and is not an error.
// An error means a prompt could not be delivered; the transition that
// preceded it stands.
func (e *Engine) Handle(ctx context.Context, ev Event, r Responder) (domain.State, error) {
	s := e.sessions.GetOrCreate(ev.Identity)
	ctx = identity.WithState(identity.WithKey(ctx, ev.Identity), string(s.State()))

	e.logger.DebugContext(ctx, "conversation event", "kind", ev.Kind.String())

	switch ev.Kind {
	case KindStart:
		return e.start(ctx, s, ev, r)
	case KindCancel:
		return e.cancel(ctx, s, r)
	}

	state := s.State()
	if !state.Active() {
		return state, e.send(ctx, r, Prompt{Text: restartHintText})
	}
	if ev.Kind == KindCallback {
		if state == domain.StateManager && ev.Text == PassManagerData {
			return e.managerAccepted(ctx, s, r)
		}
		e.logger.DebugContext(ctx, "callback ignored", "data", ev.Text)
		return state, nil
	}
	if ev.Kind == KindContact && state != domain.StatePhone {
		return e.reprompt(ctx, s, r)
	}

	switch state {
	case domain.StatePhone:
		return e.phoneStep(ctx, s, ev, r)
	case domain.StateBrand:
		return e.brandStep(ctx, s, ev.Text, r)
	case domain.StateModel:
		return e.modelStep(ctx, s, ev.Text, r)
	case domain.StateCity:
		return e.cityStep(ctx, s, ev.Text, r)
	case domain.StateYear:
		return e.yearStep(ctx, s, ev.Text, r)
	case domain.StateBudget:
		return e.budgetStep(ctx, s, ev.Text, r)
	case domain.StateManager:
		return e.managerStep(ctx, s, ev.Text, r)
	case domain.StateClientName:
		return e.nameStep(ctx, s, ev.Text, r)
	default:
		return state, fmt.Errorf("no handler for state %q", state)
	}
}

func (e *Engine) start(ctx context.Context, s *domain.Session, ev Event, r Responder) (domain.State, error) {
	s.Reset()
	s.RememberProfile(ev.Profile)
	if args := strings.Fields(ev.Text); len(args) > 0 {
		s.Tag = args[0]
	}

	if err := e.fire(ctx, s, domain.EventStart); err != nil {
		return s.State(), err
	}
	if s.Tag != "" {
		e.sync(ctx, s)
	}

	return s.State(), e.send(ctx, r, Prompt{Text: greetingText, HTML: true, Keyboard: phoneKeyboard(true)})
}

func (e *Engine) cancel(ctx context.Context, s *domain.Session, r Responder) (domain.State, error) {
	if err := e.fire(ctx, s, domain.EventCancel); err != nil {
		return s.State(), err
	}
	return s.State(), e.send(ctx, r, Prompt{Text: cancelText, Keyboard: removeKeyboard()})
}

func (e *Engine) phoneStep(ctx context.Context, s *domain.Session, ev Event, r Responder) (domain.State, error) {
	s.RememberProfile(ev.Profile)

	raw, invalidText := ev.Text, phoneInvalidText
	if ev.Kind == KindContact {
		if ev.Contact == nil {
			return s.State(), e.send(ctx, r, Prompt{Text: phoneInvalidText, Keyboard: phoneKeyboard(false)})
		}
		s.RememberContact(*ev.Contact)
		raw, invalidText = ev.Contact.PhoneNumber, contactInvalidText
	} else if strings.TrimSpace(ev.Text) == ProcessInfoButton {
		return s.State(), e.send(ctx, r, Prompt{Text: processInfoText, HTML: true, Keyboard: phoneKeyboard(false)})
	}

	number, ok := phone.Normalize(raw)
	if !ok {
		return s.State(), e.send(ctx, r, Prompt{Text: invalidText, Keyboard: phoneKeyboard(false)})
	}

	s.Phone = number
	s.DeriveClientName()
	return e.advance(ctx, s, domain.EventPhoneAccepted, r,
		Prompt{Text: brandPromptText(), HTML: true, Keyboard: brandKeyboard()})
}

func (e *Engine) brandStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	brand := strings.TrimSpace(text)
	if brand == "" {
		return s.State(), e.send(ctx, r, Prompt{Text: brandEmptyText, Keyboard: brandKeyboard()})
	}
	s.Brand = brand
	return e.advance(ctx, s, domain.EventBrandChosen, r,
		Prompt{Text: modelPromptText(brand), HTML: true, Keyboard: modelKeyboard(brand)})
}

func (e *Engine) modelStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	model := strings.TrimSpace(text)
	if model == "" {
		return s.State(), e.send(ctx, r, Prompt{Text: modelEmptyText, Keyboard: modelKeyboard(s.Brand)})
	}
	if fold(model) == fold(OtherModelButton) {
		return s.State(), e.send(ctx, r, Prompt{Text: modelManualText, Keyboard: removeKeyboard()})
	}
	s.Model = model
	return e.advance(ctx, s, domain.EventModelChosen, r,
		Prompt{Text: cityPromptText(), HTML: true, Keyboard: cityKeyboard()})
}

func (e *Engine) cityStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	city := strings.TrimSpace(text)
	if city == "" {
		return s.State(), e.send(ctx, r, Prompt{Text: cityEmptyText, Keyboard: cityKeyboard()})
	}
	s.City = city
	return e.advance(ctx, s, domain.EventCityChosen, r,
		Prompt{Text: yearPromptText(), HTML: true, Keyboard: removeKeyboard()})
}

// ParseYear validates a maximum production year.
func ParseYear(text string) (int, string, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, yearFormatText, false
	}
	if year < MinYear || year > MaxYear {
		return 0, yearRangeText, false
	}
	return year, "", true
}

// ParseBudget validates a budget in roubles. Spaces and commas used as
// thousands separators are ignored.
func ParseBudget(text string) (int64, string, bool) {
	cleaned := strings.NewReplacer(" ", "", ",", "", "\u00a0", "").Replace(strings.TrimSpace(text))
	budget, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, budgetFormatText, false
	}
	if budget <= 0 {
		return 0, budgetRangeText, false
	}
	return budget, "", true
}

func (e *Engine) yearStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	year, complaint, ok := ParseYear(text)
	if !ok {
		return s.State(), e.send(ctx, r, Prompt{Text: complaint})
	}
	s.YearTo = year
	return e.advance(ctx, s, domain.EventYearAccepted, r,
		Prompt{Text: budgetPromptText(), HTML: true})
}

func (e *Engine) budgetStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	budget, complaint, ok := ParseBudget(text)
	if !ok {
		return s.State(), e.send(ctx, r, Prompt{Text: complaint})
	}
	s.Budget = budget

	state, err := e.advance(ctx, s, domain.EventBudgetAccepted, r,
		Prompt{Text: analyzingText(), HTML: true, Keyboard: removeKeyboard()})
	if err != nil {
		return state, err
	}

	e.countdown(ctx, r)
	e.recommend(ctx, s, r)

	return state, e.send(ctx, r, Prompt{Text: managerOfferText, Keyboard: managerKeyboard()})
}

func (e *Engine) managerStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	answer := fold(text)
	switch {
	case answer == "":
		return s.State(), e.send(ctx, r, Prompt{Text: managerChoiceText, Keyboard: managerKeyboard()})
	case strings.HasPrefix(answer, "да") || strings.Contains(answer, "передать"):
		return e.managerAccepted(ctx, s, r)
	case strings.HasPrefix(answer, "нет") || strings.Contains(answer, "пока"):
		return e.managerDeclined(ctx, s, r)
	default:
		return s.State(), e.send(ctx, r, Prompt{Text: managerChoiceText, Keyboard: managerKeyboard()})
	}
}

func (e *Engine) managerAccepted(ctx context.Context, s *domain.Session, r Responder) (domain.State, error) {
	s.Manager = domain.ManagerRequested
	if s.DeriveClientName() {
		return e.finalize(ctx, s, domain.EventHandOff, r)
	}
	return e.advance(ctx, s, domain.EventAskName, r,
		Prompt{Text: askNameText, Keyboard: removeKeyboard()})
}

func (e *Engine) managerDeclined(ctx context.Context, s *domain.Session, r Responder) (domain.State, error) {
	s.Manager = domain.ManagerDeclined
	e.sync(ctx, s)

	for _, p := range []Prompt{
		{Text: onHoldText, Keyboard: removeKeyboard()},
		{Text: followUpText, Keyboard: passManagerKeyboard()},
		{Text: summaryText(s)},
	} {
		if err := e.send(ctx, r, p); err != nil {
			return s.State(), err
		}
	}
	return s.State(), nil
}

func (e *Engine) nameStep(ctx context.Context, s *domain.Session, text string, r Responder) (domain.State, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return s.State(), e.send(ctx, r, Prompt{Text: nameEmptyText})
	}
	s.ClientName = name
	return e.finalize(ctx, s, domain.EventNameGiven, r)
}

func (e *Engine) finalize(ctx context.Context, s *domain.Session, event string, r Responder) (domain.State, error) {
	s.DeriveClientName()
	if err := e.fire(ctx, s, event); err != nil {
		return s.State(), err
	}
	e.sync(ctx, s)

	if err := e.send(ctx, r, Prompt{Text: handOffText(s), Keyboard: removeKeyboard()}); err != nil {
		return s.State(), err
	}
	return s.State(), e.send(ctx, r, Prompt{Text: summaryText(s)})
}

// reprompt repeats the question of the current state.
func (e *Engine) reprompt(ctx context.Context, s *domain.Session, r Responder) (domain.State, error) {
	var p Prompt
	switch s.State() {
	case domain.StateBrand:
		p = Prompt{Text: brandPromptText(), HTML: true, Keyboard: brandKeyboard()}
	case domain.StateModel:
		p = Prompt{Text: modelPromptText(s.Brand), HTML: true, Keyboard: modelKeyboard(s.Brand)}
	case domain.StateCity:
		p = Prompt{Text: cityPromptText(), HTML: true, Keyboard: cityKeyboard()}
	case domain.StateYear:
		p = Prompt{Text: yearPromptText(), HTML: true}
	case domain.StateBudget:
		p = Prompt{Text: budgetPromptText(), HTML: true}
	case domain.StateManager:
		p = Prompt{Text: managerChoiceText, Keyboard: managerKeyboard()}
	case domain.StateClientName:
		p = Prompt{Text: askNameText}
	default:
		p = Prompt{Text: restartHintText}
	}
	return s.State(), e.send(ctx, r, p)
}

// advance fires event, syncs the session and sends the next prompt.
func (e *Engine) advance(ctx context.Context, s *domain.Session, event string, r Responder, next Prompt) (domain.State, error) {
	if err := e.fire(ctx, s, event); err != nil {
		return s.State(), err
	}
	e.sync(ctx, s)
	return s.State(), e.send(ctx, r, next)
}

func (e *Engine) fire(ctx context.Context, s *domain.Session, event string) error {
	from, to, err := s.Fire(ctx, event)
	if err != nil {
		return fmt.Errorf("transition %s from %s: %w", event, from, err)
	}

	e.logger.InfoContext(ctx, "conversation transition",
		"event", event,
		"from", string(from),
		"to", string(to))

	if e.onTransition != nil {
		e.onTransition(ctx, Transition{
			IdentityKey: s.IdentityKey,
			Event:       event,
			From:        from,
			To:          to,
		})
	}
	return nil
}

func (e *Engine) sync(ctx context.Context, s *domain.Session) {
	if e.detector.MaybeSync(ctx, s) {
		e.logger.DebugContext(ctx, "sheet sync issued")
	}
}

func (e *Engine) send(ctx context.Context, r Responder, p Prompt) error {
	if _, err := r.Send(ctx, p); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	return nil
}

// countdown shows the decorative waiting animation by editing one message.
// It only delays the calling conversation.
func (e *Engine) countdown(ctx context.Context, r Responder) {
	total := e.countdownSteps
	if total == 0 {
		return
	}

	frames := countdownFrames(total)
	ref, err := r.Send(ctx, Prompt{Text: frames[0]})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to send countdown", "error", err)
		return
	}

	for step := 1; step <= total; step++ {
		if !sleep(ctx, e.countdownInterval) {
			return
		}
		if err := r.Edit(ctx, ref, frames[step]); err != nil {
			e.logger.WarnContext(ctx, "failed to update countdown", "error", err)
			return
		}
	}

	if err := r.Edit(ctx, ref, countdownFinal(total)); err != nil {
		e.logger.WarnContext(ctx, "failed to finish countdown", "error", err)
	}
}

func (e *Engine) recommend(ctx context.Context, s *domain.Session, r Responder) {
	if e.recommender == nil {
		return
	}
	text, err := e.recommender.Recommend(ctx, recommend.Request{
		Brand:  s.Brand,
		Model:  s.Model,
		City:   s.City,
		YearTo: s.YearTo,
		Budget: s.Budget,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "recommendation skipped", "error", err)
		return
	}
	if _, err := r.Send(ctx, Prompt{Text: recommendationHead + text}); err != nil {
		e.logger.WarnContext(ctx, "failed to send recommendation", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
