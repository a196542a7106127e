package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/DoyleJ11/battleships-client/internal/board"
)

var ErrUnknownMode = errors.New("unknown game mode")
var ErrUnknownPhase = errors.New("unknown game phase")
var ErrInvalidSession = errors.New("invalid session snapshot")

type Mode string

const (
	ModePvE Mode = "pve"
	ModePvP Mode = "pvp"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModePvE, ModePvP:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

type Phase string

const (
	PhasePlacement Phase = "placement"
	PhaseBattle    Phase = "battle"
	PhaseFinished  Phase = "finished"
)

func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhasePlacement, PhaseBattle, PhaseFinished:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
}

// Active reports whether the phase belongs on the battle screen.
func (p Phase) Active() bool {
	return p == PhaseBattle || p == PhaseFinished
}

// Ref identifies a freshly created game from the local player's side.
type Ref struct {
	GameID   string
	PlayerID string
}

// Session is the authoritative snapshot returned by the game service. It is
// replaced as a whole, never patched.
type Session struct {
	GameID                 string     `json:"game_id"`
	PlayerID               string     `json:"player_id"`
	Mode                   Mode       `json:"mode,omitempty"`
	Phase                  Phase      `json:"phase"`
	YourTurn               bool       `json:"your_turn"`
	YourBoard              board.Grid `json:"your_board"`
	OpponentBoard          board.Grid `json:"opponent_board"`
	RemainingShipsYou      int        `json:"remaining_ships_you"`
	RemainingShipsOpponent int        `json:"remaining_ships_opponent"`
	Message                *string    `json:"message,omitempty"`
}

// Validate checks a snapshot before it is allowed to replace the current one.
func (s *Session) Validate() error {
	if _, err := ParsePhase(string(s.Phase)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !s.YourBoard.Valid() {
		return fmt.Errorf("%w: your_board has unknown cells", ErrInvalidSession)
	}
	if !s.OpponentBoard.Valid() {
		return fmt.Errorf("%w: opponent_board has unknown cells", ErrInvalidSession)
	}
	if s.RemainingShipsYou < 0 || s.RemainingShipsOpponent < 0 {
		return fmt.Errorf("%w: negative ship count", ErrInvalidSession)
	}
	return nil
}

func (s *Session) MessageText() string {
	if s.Message == nil {
		return ""
	}
	return *s.Message
}

// ServiceError is a non-success answer from the game service.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Describe turns any error into the single message shown to the player.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
