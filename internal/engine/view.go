package engine

import (
	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

// View is the read-only picture handed to the presentation layer. Every
// board and slice in it is a fresh copy.
type View struct {
	Version  int       `json:"version"`
	Screen   Screen    `json:"screen"`
	Mode     game.Mode `json:"mode,omitempty"`
	GameID   string    `json:"game_id,omitempty"`
	PlayerID string    `json:"player_id,omitempty"`
	Busy     bool      `json:"busy"`
	Error    string    `json:"error,omitempty"`

	Draft      fleet.Draft `json:"draft,omitempty"`
	DraftValid bool        `json:"draft_valid"`
	DraftError string      `json:"draft_error,omitempty"`
	CanSubmit  bool        `json:"can_submit"`

	Phase                  game.Phase  `json:"phase,omitempty"`
	YourTurn               bool        `json:"your_turn"`
	YourBoard              *board.Grid `json:"your_board,omitempty"`
	OpponentBoard          *board.Grid `json:"opponent_board,omitempty"`
	RemainingShipsYou      int         `json:"remaining_ships_you"`
	RemainingShipsOpponent int         `json:"remaining_ships_opponent"`
	CanFire                bool        `json:"can_fire"`
	Finished               bool        `json:"finished"`
	Status                 string      `json:"status,omitempty"`
	Banner                 string      `json:"banner,omitempty"`
}

func (s State) View() View {
	v := View{
		Screen:    s.Screen,
		Mode:      s.Mode,
		GameID:    s.GameID,
		PlayerID:  s.PlayerID,
		Busy:      s.Busy(),
		Error:     s.Error,
		CanSubmit: s.CanSubmit(),
		CanFire:   s.CanFire(),
	}

	if s.Draft != nil {
		v.Draft = s.Draft.Clone()
		if err := fleet.Validate(s.Draft); err != nil {
			v.DraftError = err.Error()
		} else {
			v.DraftValid = true
		}
	}

	switch {
	case s.Session != nil:
		own := s.Session.YourBoard
		opp := s.Session.OpponentBoard.Masked()
		v.YourBoard = &own
		v.OpponentBoard = &opp
		v.Phase = s.Session.Phase
		v.YourTurn = s.Session.YourTurn
		v.RemainingShipsYou = s.Session.RemainingShipsYou
		v.RemainingShipsOpponent = s.Session.RemainingShipsOpponent
		v.Status, v.Banner = statusText(s.Session)
		v.Finished = s.Session.Phase == game.PhaseFinished
	case s.Draft != nil:
		preview := fleet.Preview(s.Draft)
		v.YourBoard = &preview
	}
	return v
}

func statusText(sess *game.Session) (status, banner string) {
	if sess.Phase == game.PhaseFinished {
		msg := sess.MessageText()
		if msg == "" {
			return "Finished", "Finished."
		}
		return msg, msg
	}
	if sess.Phase == game.PhasePlacement {
		return "Waiting for opponent", ""
	}
	if sess.YourTurn {
		return "Your turn", ""
	}
	return "Opponent turn", ""
}
