package domain

import "github.com/looplab/fsm"

// State is a step of the intake conversation.
type State string

// Conversation states. StatePhone is entered on /start; StateFinalized is terminal.
const (
	StateIdle       State = "idle"
	StatePhone      State = "phone"
	StateBrand      State = "brand"
	StateModel      State = "model"
	StateCity       State = "city"
	StateYear       State = "year"
	StateBudget     State = "budget"
	StateManager    State = "manager"
	StateClientName State = "client_name"
	StateFinalized  State = "finalized"
)

// Transition events fired by conversation handlers.
const (
	EventStart          = "start"
	EventCancel         = "cancel"
	EventPhoneAccepted  = "phone_accepted"
	EventBrandChosen    = "brand_chosen"
	EventModelChosen    = "model_chosen"
	EventCityChosen     = "city_chosen"
	EventYearAccepted   = "year_accepted"
	EventBudgetAccepted = "budget_accepted"
	EventAskName        = "ask_name"
	EventHandOff        = "hand_off"
	EventNameGiven      = "name_given"
)

// TotalSteps is the number of questionnaire steps shown in progress bars.
const TotalSteps = 7

// AllStates lists every state in questionnaire order.
var AllStates = []State{
	StateIdle,
	StatePhone,
	StateBrand,
	StateModel,
	StateCity,
	StateYear,
	StateBudget,
	StateManager,
	StateClientName,
	StateFinalized,
}

func allStateNames() []string {
	names := make([]string, len(AllStates))
	for i, s := range AllStates {
		names[i] = string(s)
	}
	return names
}

// Transitions returns the conversation transition table. Restart and cancel
// are reachable from every state; all other edges move strictly forward.
func Transitions() fsm.Events {
	return fsm.Events{
		{Name: EventStart, Src: allStateNames(), Dst: string(StatePhone)},
		{Name: EventCancel, Src: allStateNames(), Dst: string(StateIdle)},
		{Name: EventPhoneAccepted, Src: []string{string(StatePhone)}, Dst: string(StateBrand)},
		{Name: EventBrandChosen, Src: []string{string(StateBrand)}, Dst: string(StateModel)},
		{Name: EventModelChosen, Src: []string{string(StateModel)}, Dst: string(StateCity)},
		{Name: EventCityChosen, Src: []string{string(StateCity)}, Dst: string(StateYear)},
		{Name: EventYearAccepted, Src: []string{string(StateYear)}, Dst: string(StateBudget)},
		{Name: EventBudgetAccepted, Src: []string{string(StateBudget)}, Dst: string(StateManager)},
		{Name: EventAskName, Src: []string{string(StateManager)}, Dst: string(StateClientName)},
		{Name: EventHandOff, Src: []string{string(StateManager)}, Dst: string(StateFinalized)},
		{Name: EventNameGiven, Src: []string{string(StateClientName)}, Dst: string(StateFinalized)},
	}
}

// Step returns the progress ordinal of a state, 0 when the state is outside
// the questionnaire.
func (s State) Step() int {
	switch s {
	case StatePhone:
		return 1
	case StateBrand:
		return 2
	case StateModel:
		return 3
	case StateCity:
		return 4
	case StateYear:
		return 5
	case StateBudget:
		return 6
	case StateManager, StateClientName, StateFinalized:
		return 7
	default:
		return 0
	}
}

// Active reports whether a conversation is in progress.
func (s State) Active() bool {
	return s != StateIdle && s != StateFinalized
}
