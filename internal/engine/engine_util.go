package engine

import (
	"errors"

	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

func NewState() State {
	return State{Screen: ScreenHome}
}

func (s State) Busy() bool {
	return s.InFlight != ActionNone
}

// CanFire is the turn gate: battle phase, our turn, nothing in flight.
func (s State) CanFire() bool {
	return s.Screen == ScreenBattle &&
		s.Session != nil &&
		s.Session.Phase == game.PhaseBattle &&
		s.Session.YourTurn &&
		!s.Busy()
}

func (s State) CanSubmit() bool {
	return s.Screen == ScreenPlacement &&
		s.Draft != nil &&
		!s.Busy() &&
		fleet.Validate(s.Draft) == nil
}

var fallbackMessages = map[Action]string{
	ActionCreate:  "Failed to create game.",
	ActionSubmit:  "Failed to place ships.",
	ActionFire:    "Failed to fire.",
	ActionRefresh: "Failed to load game state.",
}

// describe keeps the service's own message; transport and decode failures
// get the generic line for the action.
func describe(a Action, err error) string {
	var se *game.ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallbackMessages[a]
}
