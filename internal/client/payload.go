package client

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

var errMissingField = errors.New("missing field")

type CreateGameRequest struct {
	Mode      string `json:"mode"`
	BoardSize int    `json:"board_size"`
}

type CreateGameResponse struct {
	GameID    string `json:"game_id"`
	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id,omitempty"`
}

type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type ShipPayload struct {
	Start       Coord  `json:"start"`
	Orientation string `json:"orientation"`
	Length      int    `json:"length"`
}

type PlaceShipsRequest struct {
	PlayerID string        `json:"player_id"`
	Ships    []ShipPayload `json:"ships"`
}

type FireRequest struct {
	PlayerID string `json:"player_id"`
	Coord    Coord  `json:"coord"`
}

type ErrorResponse struct {
	Detail any `json:"detail"`
}

// StateResponse mirrors the snapshot the service sends. Pointers mark the
// fields that must be present.
type StateResponse struct {
	GameID                 string     `json:"game_id,omitempty"`
	Mode                   string     `json:"mode,omitempty"`
	Phase                  *string    `json:"phase"`
	YourTurn               *bool      `json:"your_turn"`
	YourBoard              [][]string `json:"your_board"`
	OpponentBoard          [][]string `json:"opponent_board"`
	RemainingShipsYou      *int       `json:"remaining_ships_you"`
	RemainingShipsOpponent *int       `json:"remaining_ships_opponent"`
	Message                *string    `json:"message,omitempty"`
}

func shipsPayload(ships []fleet.Ship) []ShipPayload {
	out := make([]ShipPayload, len(ships))
	for i, s := range ships {
		out[i] = ShipPayload{
			Start:       Coord{Row: s.Start.Row, Col: s.Start.Col},
			Orientation: string(s.Orientation),
			Length:      s.Length,
		}
	}
	return out
}

func (r StateResponse) toSession(gameID, playerID string) (game.Session, error) {
	switch {
	case r.Phase == nil:
		return game.Session{}, fmt.Errorf("%w: phase", errMissingField)
	case r.YourTurn == nil:
		return game.Session{}, fmt.Errorf("%w: your_turn", errMissingField)
	case r.YourBoard == nil:
		return game.Session{}, fmt.Errorf("%w: your_board", errMissingField)
	case r.OpponentBoard == nil:
		return game.Session{}, fmt.Errorf("%w: opponent_board", errMissingField)
	case r.RemainingShipsYou == nil:
		return game.Session{}, fmt.Errorf("%w: remaining_ships_you", errMissingField)
	case r.RemainingShipsOpponent == nil:
		return game.Session{}, fmt.Errorf("%w: remaining_ships_opponent", errMissingField)
	}

	phase, err := game.ParsePhase(*r.Phase)
	if err != nil {
		return game.Session{}, err
	}
	own, err := board.FromRows(r.YourBoard)
	if err != nil {
		return game.Session{}, fmt.Errorf("your_board: %w", err)
	}
	opp, err := board.FromRows(r.OpponentBoard)
	if err != nil {
		return game.Session{}, fmt.Errorf("opponent_board: %w", err)
	}

	s := game.Session{
		GameID:                 gameID,
		PlayerID:               playerID,
		Mode:                   game.Mode(r.Mode),
		Phase:                  phase,
		YourTurn:               *r.YourTurn,
		YourBoard:              own,
		OpponentBoard:          opp,
		RemainingShipsYou:      *r.RemainingShipsYou,
		RemainingShipsOpponent: *r.RemainingShipsOpponent,
		Message:                r.Message,
	}
	return s, s.Validate()
}
