// Package hub keeps the independent session controllers of all connected
// presentation clients, keyed by a short session code.
package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/session"
)

var ErrClosed = errors.New("hub closed")

// Factory builds a controller bound to the hub's context.
type Factory func(ctx context.Context) *session.Controller

type HubMsg interface{ isHubMsg() }

// CreateSession replies with the new controller, or nil if the code is taken.
type CreateSession struct {
	Code  string
	Reply chan *session.Controller
}

type GetSession struct {
	Code  string
	Reply chan *session.Controller
}

type RemoveSession struct {
	Code  string
	Reply chan bool
}

type ShutdownHub struct{}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox      chan HubMsg
	sessions   map[string]*session.Controller
	newSession Factory
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewHub(parent context.Context, newSession Factory, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:      make(chan HubMsg, 64),
		sessions:   make(map[string]*session.Controller),
		newSession: newSession,
		log:        log.Named("hub"),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if h.sessions[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				c := h.newSession(h.ctx)
				h.sessions[msg.Code] = c
				h.log.Info("session created", zap.String("session", msg.Code), zap.Int("sessions", len(h.sessions)))
				msg.Reply <- c

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case RemoveSession:
				c := h.sessions[msg.Code]
				if c != nil {
					delete(h.sessions, msg.Code)
					c.Close()
					h.log.Info("session removed", zap.String("session", msg.Code))
				}
				msg.Reply <- c != nil

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for code, c := range h.sessions {
		c.Close()
		delete(h.sessions, code)
	}
	h.cancel()
}

// Create registers a new controller under code. ok is false when the code
// is already in use.
func (h *Hub) Create(ctx context.Context, code string) (c *session.Controller, ok bool, err error) {
	reply := make(chan *session.Controller, 1)
	if err := h.send(ctx, CreateSession{Code: code, Reply: reply}); err != nil {
		return nil, false, err
	}
	select {
	case c = <-reply:
		return c, c != nil, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-h.done:
		return nil, false, ErrClosed
	}
}

// Get returns the controller for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*session.Controller, error) {
	reply := make(chan *session.Controller, 1)
	if err := h.send(ctx, GetSession{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case c := <-reply:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrClosed
	}
}

// Remove closes and forgets the controller for code.
func (h *Hub) Remove(ctx context.Context, code string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.send(ctx, RemoveSession{Code: code, Reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-h.done:
		return false, ErrClosed
	}
}

// Shutdown closes every controller and waits for the hub to stop.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}
