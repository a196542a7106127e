// Package session runs the game-session state machine for one player. A
// Controller owns the state in a single goroutine; network calls run
// alongside it and feed their results back through the same inbox, so every
// transition is applied atomically and in one place.
package session

import (
	"context"
	"errors"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/engine"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

var ErrClosed = errors.New("session controller closed")

const DefaultPollInterval = 1200 * time.Millisecond

type Msg interface{ isSessionMsg() }

// Command asks the controller to apply an event on behalf of a caller. Reply
// receives nil or the rejection once the action has finished, including any
// network round trip it started.
type Command struct {
	Event engine.Event
	Reply chan error
}

func (Command) isSessionMsg() {}

type Join struct {
	ClientID string
	Outbox   chan engine.View // where this subscriber receives views
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

type GetView struct {
	Reply chan engine.View
}

func (GetView) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// result carries the outcome of a network call or a poll tick back in.
type result struct{ ev engine.Event }

func (result) isSessionMsg() {}

type Options struct {
	PollInterval time.Duration
	Logger       *zap.Logger
}

type Controller struct {
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan engine.View
	pending chan error

	gw        Gateway
	log       *zap.Logger
	pollEvery time.Duration
	pollCtx   context.Context
	stopPoll  context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, gw Gateway, opts Options) *Controller {
	ctx, cancel := context.WithCancel(parent)

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		inbox:     make(chan Msg, 64),
		state:     engine.NewState(),
		clients:   make(map[string]chan engine.View),
		gw:        gw,
		log:       opts.Logger.Named("session"),
		pollEvery: opts.PollInterval,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go c.loop()
	return c
}

// Inbox exposes the controller's mailbox for subscribers and tests.
func (c *Controller) Inbox() chan<- Msg { return c.inbox }

// Done is closed once the controller has shut down.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			return

		case m := <-c.inbox:
			switch msg := m.(type) {
			case Command:
				c.handle(msg.Event, msg.Reply)

			case result:
				c.handle(msg.ev, nil)

			case Join:
				c.clients[msg.ClientID] = msg.Outbox
				select {
				case msg.Outbox <- c.view():
				default:
				}

			case Leave:
				if ch, ok := c.clients[msg.ClientID]; ok {
					close(ch)
					delete(c.clients, msg.ClientID)
				}

			case GetView:
				msg.Reply <- c.view()

			case Shutdown:
				c.shutdown()
				return
			}
		}
	}
}

func (c *Controller) handle(ev engine.Event, reply chan error) {
	prev := c.state
	next, effects, err := engine.Apply(prev, ev)
	c.state = next

	c.run(effects)

	if reply != nil {
		if err == nil && !prev.Busy() && next.Busy() {
			// Answered by a Complete effect when the request finishes.
			c.pending = reply
		} else {
			reply <- err
		}
	}

	if snap, ok := ev.(engine.SnapshotReceived); ok && snap.Epoch == prev.Epoch && snap.Seq <= prev.Applied {
		c.log.Debug("stale snapshot ignored", zap.Int("seq", snap.Seq), zap.Int("applied", prev.Applied))
	}
	if prev.Screen != next.Screen {
		c.log.Info("screen changed",
			zap.String("from", string(prev.Screen)),
			zap.String("to", string(next.Screen)),
			zap.String("game_id", next.GameID),
			zap.String("player_id", next.PlayerID),
		)
	}

	if !reflect.DeepEqual(prev, next) {
		c.version++
		c.broadcast(c.view())
	}
}

func (c *Controller) view() engine.View {
	v := c.state.View()
	v.Version = c.version
	return v
}

func (c *Controller) broadcast(v engine.View) {
	for id, ch := range c.clients {
		select {
		case ch <- v:
			// ok
		default:
			// Subscriber is slow/full - drop it.
			close(ch)
			delete(c.clients, id)
		}
	}
}

func (c *Controller) shutdown() {
	c.stopPolling()
	if c.pending != nil {
		c.pending <- ErrClosed
		c.pending = nil
	}
	for id, ch := range c.clients {
		close(ch)
		delete(c.clients, id)
	}
	c.cancel()
}

// post hands an event back to the loop unless the controller is gone.
func (c *Controller) post(ev engine.Event) {
	select {
	case c.inbox <- result{ev: ev}:
	case <-c.ctx.Done():
	}
}

func (c *Controller) startPolling() {
	c.stopPolling()
	ctx, cancel := context.WithCancel(c.ctx)
	c.pollCtx, c.stopPoll = ctx, cancel
	go c.poll(ctx)
}

func (c *Controller) stopPolling() {
	if c.stopPoll != nil {
		c.stopPoll()
		c.pollCtx, c.stopPoll = nil, nil
	}
}

func (c *Controller) poll(ctx context.Context) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case c.inbox <- result{ev: engine.PollTick{}}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Controller) do(ctx context.Context, ev engine.Event) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- Command{Event: ev, Reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// CreateGame starts a new game and moves to fleet placement.
func (c *Controller) CreateGame(ctx context.Context, mode game.Mode) error {
	return c.do(ctx, engine.CreateGame{Mode: mode})
}

func (c *Controller) EditShip(ctx context.Context, shipID string, start board.Coord, o fleet.Orientation) error {
	return c.do(ctx, engine.EditShip{ShipID: shipID, Start: start, Orientation: o})
}

func (c *Controller) SetDraft(ctx context.Context, d fleet.Draft) error {
	return c.do(ctx, engine.SetDraft{Draft: d})
}

func (c *Controller) ResetDraft(ctx context.Context) error {
	return c.do(ctx, engine.ResetDraft{})
}

// SubmitPlacement validates the draft locally and, if it is legal, sends it.
func (c *Controller) SubmitPlacement(ctx context.Context) error {
	return c.do(ctx, engine.SubmitPlacement{})
}

// Fire shoots at target and reloads the state. Outside our turn it returns
// engine.ErrFireSuppressed without contacting the service.
func (c *Controller) Fire(ctx context.Context, target board.Coord) error {
	return c.do(ctx, engine.Fire{Target: target})
}

func (c *Controller) Refresh(ctx context.Context) error {
	return c.do(ctx, engine.Refresh{})
}

// Reset abandons the current game locally and returns to the home screen.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, engine.Reset{})
}

func (c *Controller) View(ctx context.Context) (engine.View, error) {
	reply := make(chan engine.View, 1)
	select {
	case c.inbox <- GetView{Reply: reply}:
	case <-ctx.Done():
		return engine.View{}, ctx.Err()
	case <-c.ctx.Done():
		return engine.View{}, ErrClosed
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return engine.View{}, ctx.Err()
	case <-c.done:
		return engine.View{}, ErrClosed
	}
}

// Subscribe sends the current view to outbox and then every new one. outbox
// is closed if it falls behind or the controller shuts down.
func (c *Controller) Subscribe(clientID string, outbox chan engine.View) error {
	select {
	case c.inbox <- Join{ClientID: clientID, Outbox: outbox}:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) Unsubscribe(clientID string) {
	select {
	case c.inbox <- Leave{ClientID: clientID}:
	case <-c.done:
	}
}

// Close stops polling, releases subscribers and waits for the loop to exit.
func (c *Controller) Close() {
	select {
	case c.inbox <- Shutdown{}:
	case <-c.done:
	}
	<-c.done
}
