package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/engine"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

func snapshot(phase game.Phase, yourTurn bool) game.Session {
	return game.Session{
		Phase:                  phase,
		YourTurn:               yourTurn,
		YourBoard:              board.Empty(),
		OpponentBoard:          board.Empty(),
		RemainingShipsYou:      5,
		RemainingShipsOpponent: 5,
	}
}

// fakeGateway scripts the game service and records every call in order.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	fired []board.Coord

	createGate chan struct{} // when set, CreateGame waits for it
	createSeen chan struct{}
	placeErr   error
	placed     game.Session
	fireErr    error
	state      func(n int) (game.Session, error)
	stateCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		placed: snapshot(game.PhaseBattle, true),
		state: func(int) (game.Session, error) {
			return snapshot(game.PhaseBattle, false), nil
		},
	}
}

func (f *fakeGateway) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeGateway) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) count(call string) int {
	n := 0
	for _, c := range f.history() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeGateway) CreateGame(ctx context.Context, mode game.Mode) (game.Ref, error) {
	f.record("create")
	if f.createSeen != nil {
		f.createSeen <- struct{}{}
	}
	if f.createGate != nil {
		select {
		case <-f.createGate:
		case <-ctx.Done():
			return game.Ref{}, ctx.Err()
		}
	}
	return game.Ref{GameID: "g-1", PlayerID: "p-1"}, nil
}

func (f *fakeGateway) PlaceShips(ctx context.Context, gameID, playerID string, ships []fleet.Ship) (game.Session, error) {
	f.record("place")
	if f.placeErr != nil {
		return game.Session{}, f.placeErr
	}
	return f.placed, nil
}

func (f *fakeGateway) State(ctx context.Context, gameID, playerID string) (game.Session, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "state")
	f.stateCalls++
	n := f.stateCalls
	f.mu.Unlock()
	return f.state(n)
}

func (f *fakeGateway) Fire(ctx context.Context, gameID, playerID string, target board.Coord) error {
	f.mu.Lock()
	f.calls = append(f.calls, "fire")
	f.fired = append(f.fired, target)
	f.mu.Unlock()
	return f.fireErr
}

func newController(t *testing.T, gw Gateway, every time.Duration) *Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, gw, Options{PollInterval: every})
	t.Cleanup(func() {
		c.Close()
		cancel()
	})
	return c
}

func mustView(t *testing.T, c *Controller) engine.View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := c.View(ctx)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	return v
}

// waitFor polls the controller's view until cond holds.
func waitFor(t *testing.T, c *Controller, within time.Duration, cond func(engine.View) bool) engine.View {
	t.Helper()
	deadline := time.Now().Add(within)
	for {
		v := mustView(t, c)
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v, last view: %+v", within, v)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recvView(t *testing.T, ch <-chan engine.View, within time.Duration) engine.View {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return engine.View{} // unreachable
	}
}

// toBattle creates a game and places the default fleet.
func toBattle(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()
	if err := c.CreateGame(ctx, game.ModePvE); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := c.SubmitPlacement(ctx); err != nil {
		t.Fatalf("SubmitPlacement: %v", err)
	}
}

func TestController_PvEFlow(t *testing.T) {
	gw := newFakeGateway()
	c := newController(t, gw, time.Hour)
	ctx := context.Background()

	if err := c.CreateGame(ctx, game.ModePvE); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	v := mustView(t, c)
	if v.Screen != engine.ScreenPlacement || v.GameID != "g-1" || v.PlayerID != "p-1" {
		t.Fatalf("after create: unexpected view %+v", v)
	}
	if len(v.Draft) != len(fleet.Lengths) || !v.CanSubmit {
		t.Fatalf("after create: want the default draft ready to submit, got %+v", v.Draft)
	}

	if err := c.SubmitPlacement(ctx); err != nil {
		t.Fatalf("SubmitPlacement: %v", err)
	}
	v = mustView(t, c)
	if v.Screen != engine.ScreenBattle || !v.CanFire || v.Draft != nil {
		t.Fatalf("after placement: unexpected view %+v", v)
	}

	if err := c.Fire(ctx, board.Coord{Row: 3, Col: 4}); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	v = mustView(t, c)
	if v.YourTurn || v.CanFire || v.Status != "Opponent turn" {
		t.Fatalf("after fire: want the reloaded opponent-turn state, got %+v", v)
	}

	want := []string{"create", "place", "fire", "state"}
	got := gw.history()
	if len(got) != len(want) {
		t.Fatalf("calls: want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls: want %v, got %v", want, got)
		}
	}
	if gw.fired[0] != (board.Coord{Row: 3, Col: 4}) {
		t.Fatalf("fired at %v", gw.fired[0])
	}
}

func TestController_FireOutsideTurnIsSuppressed(t *testing.T) {
	gw := newFakeGateway()
	gw.placed = snapshot(game.PhaseBattle, false)
	c := newController(t, gw, time.Hour)
	toBattle(t, c)

	err := c.Fire(context.Background(), board.Coord{Row: 0, Col: 0})
	if !errors.Is(err, engine.ErrFireSuppressed) {
		t.Fatalf("want ErrFireSuppressed, got %v", err)
	}
	if n := gw.count("fire"); n != 0 {
		t.Fatalf("want no fire request, got %d", n)
	}
	if v := mustView(t, c); v.Error != "" {
		t.Fatalf("suppressed fire must not surface an error, got %q", v.Error)
	}
}

func TestController_InvalidDraftMakesNoRequest(t *testing.T) {
	gw := newFakeGateway()
	c := newController(t, gw, time.Hour)
	ctx := context.Background()

	if err := c.CreateGame(ctx, game.ModePvE); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	six := append(fleet.DefaultDraft(), fleet.Placement{ID: "extra", Length: 2, Start: board.Coord{Row: 9, Col: 5}, Orientation: fleet.Horizontal})
	if err := c.SetDraft(ctx, six); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}

	err := c.SubmitPlacement(ctx)
	if !errors.Is(err, fleet.ErrWrongComposition) {
		t.Fatalf("want ErrWrongComposition, got %v", err)
	}
	if n := gw.count("place"); n != 0 {
		t.Fatalf("want no placement request, got %d", n)
	}
	v := mustView(t, c)
	if v.Error != fleet.ErrWrongComposition.Error() || v.Screen != engine.ScreenPlacement {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestController_ServiceFailureIsShown(t *testing.T) {
	gw := newFakeGateway()
	gw.placeErr = &game.ServiceError{Op: "PlaceShips", Status: 400, Message: "Ships overlap"}
	c := newController(t, gw, time.Hour)
	ctx := context.Background()

	if err := c.CreateGame(ctx, game.ModePvP); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	err := c.SubmitPlacement(ctx)
	var se *game.ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("want the service error back, got %v", err)
	}

	v := mustView(t, c)
	if v.Error != "Ships overlap" || v.Busy || v.Screen != engine.ScreenPlacement || v.Draft == nil {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestController_PollFailureIsSilent(t *testing.T) {
	gw := newFakeGateway()
	gw.placed = snapshot(game.PhaseBattle, false)
	gw.state = func(n int) (game.Session, error) {
		if n == 1 {
			return game.Session{}, errors.New("connection refused")
		}
		s := snapshot(game.PhaseBattle, true)
		s.YourBoard[4][4] = board.Hit
		return s, nil
	}
	c := newController(t, gw, 10*time.Millisecond)
	toBattle(t, c)

	v := waitFor(t, c, time.Second, func(v engine.View) bool { return v.YourTurn })
	if v.Error != "" {
		t.Fatalf("poll failure must not surface, got %q", v.Error)
	}
	if v.YourBoard[4][4] != board.Hit {
		t.Fatalf("want the polled board applied")
	}
	if gw.count("state") < 2 {
		t.Fatalf("want a retry after the failed poll")
	}
}

func TestController_PollingMovesToFinished(t *testing.T) {
	gw := newFakeGateway()
	gw.placed = snapshot(game.PhaseBattle, false)
	gw.state = func(int) (game.Session, error) {
		s := snapshot(game.PhaseFinished, false)
		msg := "You lose!"
		s.Message = &msg
		s.RemainingShipsYou = 0
		return s, nil
	}
	c := newController(t, gw, 10*time.Millisecond)
	toBattle(t, c)

	v := waitFor(t, c, time.Second, func(v engine.View) bool { return v.Finished })
	if v.Banner != "You lose!" || v.CanFire {
		t.Fatalf("unexpected finished view %+v", v)
	}
}

func TestController_ResetStopsPolling(t *testing.T) {
	gw := newFakeGateway()
	gw.placed = snapshot(game.PhaseBattle, false)
	c := newController(t, gw, 10*time.Millisecond)
	toBattle(t, c)

	deadline := time.Now().Add(time.Second)
	for gw.count("state") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("polling never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	v := mustView(t, c)
	if v.Screen != engine.ScreenHome || v.GameID != "" || v.YourBoard != nil {
		t.Fatalf("after reset: unexpected view %+v", v)
	}

	// Let a request that was already out finish, then expect silence.
	time.Sleep(30 * time.Millisecond)
	before := gw.count("state")
	time.Sleep(60 * time.Millisecond)
	if after := gw.count("state"); after != before {
		t.Fatalf("want no queries after reset, got %d more", after-before)
	}
}

func TestController_BusyAndResetDuringCreate(t *testing.T) {
	gw := newFakeGateway()
	gw.createGate = make(chan struct{})
	gw.createSeen = make(chan struct{}, 1)
	c := newController(t, gw, time.Hour)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.CreateGame(ctx, game.ModePvE) }()

	select {
	case <-gw.createSeen:
	case <-time.After(time.Second):
		t.Fatalf("create request never sent")
	}

	if err := c.CreateGame(ctx, game.ModePvE); !errors.Is(err, engine.ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}
	if err := c.Refresh(ctx); !errors.Is(err, engine.ErrBusy) {
		t.Fatalf("want ErrBusy from refresh, got %v", err)
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	select {
	case err := <-first:
		if !errors.Is(err, engine.ErrReset) {
			t.Fatalf("want ErrReset for the abandoned create, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("abandoned create never returned")
	}

	// The late answer belongs to the old session and must be ignored.
	close(gw.createGate)
	time.Sleep(20 * time.Millisecond)
	if v := mustView(t, c); v.Screen != engine.ScreenHome || v.GameID != "" || v.Busy {
		t.Fatalf("late create leaked into the new session: %+v", v)
	}
}

func TestController_SubscribersSeeVersionedViews(t *testing.T) {
	gw := newFakeGateway()
	c := newController(t, gw, time.Hour)

	out := make(chan engine.View, 8)
	c.Inbox() <- Join{ClientID: "sub-1", Outbox: out}

	first := recvView(t, out, 100*time.Millisecond)
	if first.Version != 0 || first.Screen != engine.ScreenHome {
		t.Fatalf("after join: unexpected view %+v", first)
	}

	if err := c.CreateGame(context.Background(), game.ModePvE); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	busy := recvView(t, out, 100*time.Millisecond)
	if busy.Version != 1 || !busy.Busy {
		t.Fatalf("want busy view at version 1, got %+v", busy)
	}
	placed := recvView(t, out, 100*time.Millisecond)
	if placed.Version != 2 || placed.Screen != engine.ScreenPlacement {
		t.Fatalf("want placement view at version 2, got %+v", placed)
	}

	// A rejected command changes nothing and publishes nothing.
	if err := c.Fire(context.Background(), board.Coord{}); !errors.Is(err, engine.ErrFireSuppressed) {
		t.Fatalf("want ErrFireSuppressed, got %v", err)
	}
	select {
	case v := <-out:
		t.Fatalf("unexpected view %+v", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestController_DropSlowSubscriber(t *testing.T) {
	gw := newFakeGateway()
	c := newController(t, gw, time.Hour)

	out := make(chan engine.View, 1)
	c.Inbox() <- Join{ClientID: "slow", Outbox: out}

	if err := c.CreateGame(context.Background(), game.ModePvE); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	// The join view filled the buffer, so the first broadcast drops us.
	<-out
	if _, ok := <-out; ok {
		t.Fatalf("expected the slow subscriber to be closed")
	}
}

func TestController_CloseReleasesCallers(t *testing.T) {
	gw := newFakeGateway()
	gw.createGate = make(chan struct{})
	gw.createSeen = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, gw, Options{PollInterval: time.Hour})

	first := make(chan error, 1)
	go func() { first <- c.CreateGame(context.Background(), game.ModePvE) }()
	<-gw.createSeen

	c.Close()
	select {
	case err := <-first:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("want ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("caller not released on close")
	}

	if _, err := c.View(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed after close, got %v", err)
	}
}

func TestController_LogsIgnoredSnapshots(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, newFakeGateway(), Options{PollInterval: time.Hour, Logger: zap.New(core)})
	t.Cleanup(func() {
		c.Close()
		cancel()
	})
	toBattle(t, c) // the accepted placement is snapshot seq 1

	// A second answer carrying the already applied sequence number.
	replay := snapshot(game.PhaseFinished, false)
	c.Inbox() <- result{ev: engine.SnapshotReceived{Epoch: 0, Seq: 1, Origin: engine.OriginPoll, Session: replay}}

	v := mustView(t, c)
	if v.Finished {
		t.Fatalf("replayed snapshot was applied: %+v", v)
	}
	if n := logs.FilterMessage("stale snapshot ignored").Len(); n != 1 {
		t.Fatalf("want one ignored-snapshot log entry, got %d", n)
	}
}
