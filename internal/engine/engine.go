package engine

import (
	"errors"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

var ErrBusy = errors.New("another action is in flight")
var ErrFireSuppressed = errors.New("fire not allowed now")
var ErrWrongScreen = errors.New("action not available on this screen")
var ErrNoGame = errors.New("no game in progress")
var ErrNoDraft = errors.New("no fleet draft to edit")
var ErrReset = errors.New("session was reset")
var ErrMissingIDs = errors.New("game service returned no game or player id")
var ErrUnsupportedEvent = errors.New("unsupported event")

type Screen string

const (
	ScreenHome      Screen = "home"
	ScreenPlacement Screen = "placement"
	ScreenBattle    Screen = "battle"
)

// Action names the request occupying the single in-flight slot.
type Action string

const (
	ActionNone    Action = ""
	ActionCreate  Action = "create"
	ActionSubmit  Action = "submit"
	ActionFire    Action = "fire"
	ActionRefresh Action = "refresh"
)

type Origin int

const (
	OriginAction Origin = iota
	OriginPoll
)

type State struct {
	Screen   Screen
	Mode     game.Mode
	GameID   string
	PlayerID string
	Session  *game.Session
	Draft    fleet.Draft
	Error    string

	InFlight     Action
	Polling      bool
	PollInFlight bool

	// Epoch changes on every reset; results from an older epoch are dropped.
	Epoch int
	// Issued and Applied number state requests so an overtaken response
	// never replaces a newer snapshot.
	Issued  int
	Applied int
}

/*
	CreateGame      -> CallCreateGame  -> GameCreated | RequestFailed
	SubmitPlacement -> CallPlaceShips  -> SnapshotReceived | RequestFailed
	Fire            -> CallFire        -> FireAccepted -> CallState -> SnapshotReceived | RequestFailed
	Refresh         -> CallState       -> SnapshotReceived | RequestFailed
	PollTick        -> CallState(poll) -> SnapshotReceived | RequestFailed (swallowed)
	Reset           -> StopPolling, Complete(ErrReset) if something was in flight
*/

type Event interface{ isEvent() }

type CreateGame struct{ Mode game.Mode }

type EditShip struct {
	ShipID      string
	Start       board.Coord
	Orientation fleet.Orientation
}

type SetDraft struct{ Draft fleet.Draft }

type ResetDraft struct{}

type SubmitPlacement struct{}

type Fire struct{ Target board.Coord }

type Refresh struct{}

type Reset struct{}

type PollTick struct{}

type GameCreated struct {
	Epoch int
	Ref   game.Ref
}

type FireAccepted struct{ Epoch int }

type SnapshotReceived struct {
	Epoch   int
	Seq     int
	Origin  Origin
	Session game.Session
}

type RequestFailed struct {
	Epoch  int
	Origin Origin
	Err    error
}

func (CreateGame) isEvent()       {}
func (EditShip) isEvent()         {}
func (SetDraft) isEvent()         {}
func (ResetDraft) isEvent()       {}
func (SubmitPlacement) isEvent()  {}
func (Fire) isEvent()             {}
func (Refresh) isEvent()          {}
func (Reset) isEvent()            {}
func (PollTick) isEvent()         {}
func (GameCreated) isEvent()      {}
func (FireAccepted) isEvent()     {}
func (SnapshotReceived) isEvent() {}
func (RequestFailed) isEvent()    {}

type Effect interface{ isEffect() }

type CallCreateGame struct {
	Epoch int
	Mode  game.Mode
}

type CallPlaceShips struct {
	Epoch    int
	Seq      int
	GameID   string
	PlayerID string
	Ships    []fleet.Ship
}

type CallFire struct {
	Epoch    int
	GameID   string
	PlayerID string
	Target   board.Coord
}

type CallState struct {
	Epoch    int
	Seq      int
	Origin   Origin
	GameID   string
	PlayerID string
}

type StartPolling struct{}

type StopPolling struct{}

// Complete releases whoever is waiting on the in-flight action.
type Complete struct{ Err error }

func (CallCreateGame) isEffect() {}
func (CallPlaceShips) isEffect() {}
func (CallFire) isEffect()       {}
func (CallState) isEffect()      {}
func (StartPolling) isEffect()   {}
func (StopPolling) isEffect()    {}
func (Complete) isEffect()       {}

// Apply computes the next state and the side effects to perform for one
// event. It never mutates s. A non-nil error means the event was rejected
// locally; the returned state is still the one to keep (a failed fleet
// validation records its reason there).
func Apply(s State, ev Event) (State, []Effect, error) {
	next := s

	switch e := ev.(type) {
	case CreateGame:
		if s.Busy() {
			return s, nil, ErrBusy
		}
		if s.Screen != ScreenHome {
			return s, nil, ErrWrongScreen
		}
		mode, err := game.ParseMode(string(e.Mode))
		if err != nil {
			return s, nil, err
		}
		next.Error = ""
		next.Mode = mode
		next.InFlight = ActionCreate
		return next, []Effect{CallCreateGame{Epoch: s.Epoch, Mode: mode}}, nil

	case GameCreated:
		if e.Epoch != s.Epoch || s.InFlight != ActionCreate {
			return s, nil, nil
		}
		if e.Ref.GameID == "" || e.Ref.PlayerID == "" {
			return failed(s, OriginAction, ErrMissingIDs)
		}
		next.GameID = e.Ref.GameID
		next.PlayerID = e.Ref.PlayerID
		next.Draft = fleet.DefaultDraft()
		next.Session = nil
		next.Screen = ScreenPlacement
		next.InFlight = ActionNone
		return next, []Effect{Complete{}}, nil

	case EditShip:
		if err := drafting(s); err != nil {
			return s, nil, err
		}
		d, err := s.Draft.Move(e.ShipID, e.Start, e.Orientation)
		if err != nil {
			return s, nil, err
		}
		next.Draft = d
		return next, nil, nil

	case SetDraft:
		if err := drafting(s); err != nil {
			return s, nil, err
		}
		next.Draft = e.Draft.Clone()
		return next, nil, nil

	case ResetDraft:
		if err := drafting(s); err != nil {
			return s, nil, err
		}
		next.Draft = fleet.DefaultDraft()
		return next, nil, nil

	case SubmitPlacement:
		if s.Busy() {
			return s, nil, ErrBusy
		}
		if err := drafting(s); err != nil {
			return s, nil, err
		}
		next.Error = ""
		if err := fleet.Validate(s.Draft); err != nil {
			next.Error = err.Error()
			return next, nil, err
		}
		next.InFlight = ActionSubmit
		next.Issued++
		return next, []Effect{CallPlaceShips{
			Epoch:    s.Epoch,
			Seq:      next.Issued,
			GameID:   s.GameID,
			PlayerID: s.PlayerID,
			Ships:    s.Draft.Ships(),
		}}, nil

	case Fire:
		if !s.CanFire() {
			return s, nil, ErrFireSuppressed
		}
		if !e.Target.InBounds() {
			return s, nil, board.ErrOutOfBounds
		}
		next.Error = ""
		next.InFlight = ActionFire
		return next, []Effect{CallFire{
			Epoch:    s.Epoch,
			GameID:   s.GameID,
			PlayerID: s.PlayerID,
			Target:   e.Target,
		}}, nil

	case FireAccepted:
		if e.Epoch != s.Epoch || s.InFlight != ActionFire {
			return s, nil, nil
		}
		return query(next, OriginAction)

	case Refresh:
		if s.Busy() {
			return s, nil, ErrBusy
		}
		if s.GameID == "" || s.PlayerID == "" {
			return s, nil, ErrNoGame
		}
		next.Error = ""
		next.InFlight = ActionRefresh
		return query(next, OriginAction)

	case PollTick:
		if s.Screen != ScreenBattle || s.GameID == "" || s.PlayerID == "" || s.PollInFlight {
			return s, nil, nil
		}
		next.PollInFlight = true
		return query(next, OriginPoll)

	case SnapshotReceived:
		return received(s, e)

	case RequestFailed:
		if e.Epoch != s.Epoch {
			return s, nil, nil
		}
		return failed(s, e.Origin, e.Err)

	case Reset:
		var effects []Effect
		if s.Polling {
			effects = append(effects, StopPolling{})
		}
		if s.Busy() {
			effects = append(effects, Complete{Err: ErrReset})
		}
		return State{Screen: ScreenHome, Epoch: s.Epoch + 1}, effects, nil

	default:
		return s, nil, ErrUnsupportedEvent
	}
}

func received(s State, e SnapshotReceived) (State, []Effect, error) {
	if e.Epoch != s.Epoch {
		return s, nil, nil
	}
	if e.Origin == OriginAction && !s.Busy() {
		return s, nil, nil
	}
	if e.Origin == OriginPoll && !s.PollInFlight {
		return s, nil, nil
	}
	if err := e.Session.Validate(); err != nil {
		return failed(s, e.Origin, err)
	}

	next := s
	var effects []Effect

	if e.Seq > s.Applied {
		snap := e.Session
		snap.GameID = s.GameID
		snap.PlayerID = s.PlayerID
		if snap.Mode == "" {
			snap.Mode = s.Mode
		}
		next.Session = &snap
		next.Applied = e.Seq
	}

	switch e.Origin {
	case OriginPoll:
		next.PollInFlight = false
	case OriginAction:
		if s.InFlight == ActionSubmit {
			// The service has accepted the fleet; the draft is no longer needed.
			next.Draft = nil
			next.Screen = ScreenPlacement
		}
		next.InFlight = ActionNone
		effects = append(effects, Complete{})
	}

	if next.Session != nil && next.Session.Phase.Active() {
		next.Screen = ScreenBattle
	}
	if next.Screen == ScreenBattle && !next.Polling {
		next.Polling = true
		effects = append(effects, StartPolling{})
	}
	return next, effects, nil
}

func failed(s State, origin Origin, err error) (State, []Effect, error) {
	next := s
	if origin == OriginPoll {
		next.PollInFlight = false
		return next, nil, nil
	}
	if !s.Busy() {
		return s, nil, nil
	}
	next.Error = describe(s.InFlight, err)
	if s.InFlight == ActionCreate {
		// No game exists yet, so the chosen mode is dropped too.
		next.Mode = ""
	}
	next.InFlight = ActionNone
	return next, []Effect{Complete{Err: err}}, nil
}

func query(next State, origin Origin) (State, []Effect, error) {
	next.Issued++
	return next, []Effect{CallState{
		Epoch:    next.Epoch,
		Seq:      next.Issued,
		Origin:   origin,
		GameID:   next.GameID,
		PlayerID: next.PlayerID,
	}}, nil
}

func drafting(s State) error {
	if s.Screen != ScreenPlacement {
		return ErrWrongScreen
	}
	if s.Draft == nil {
		return ErrNoDraft
	}
	return nil
}
