// Package ws streams session views to a presentation client and accepts its
// actions over one WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/engine"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
	"github.com/DoyleJ11/battleships-client/internal/session"
	"github.com/DoyleJ11/battleships-client/pkg/types"
)

var errUnknownType = errors.New("unknown type")
var errMissingCoord = errors.New("row and col are required")

const writeTimeout = 3 * time.Second

// Handler serves the view stream of the controller that an outer middleware
// put on the request context.
func Handler(log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := session.FromContext(r.Context())
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		code := chi.URLParam(r, "code")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan engine.View, 16)
		clientID := uuid.NewString()
		log := log.With(zap.String("session", code), zap.String("client", clientID))

		if err := c.Subscribe(clientID, out); err != nil {
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		defer c.Unsubscribe(clientID)
		log.Info("subscriber joined")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for v := range out {
				send(writeCtx, conn, types.ServerMessage{Type: types.MsgView, Version: v.Version, View: &v})
			}
			if writeCtx.Err() == nil {
				// The controller dropped us: we fell behind or it shut down.
				conn.Close(websocket.StatusTryAgainLater, "view stream ended")
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read failed", zap.Error(err))
				}
				log.Info("subscriber left")
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				send(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			// Actions may wait on the game service; keep reading meanwhile so
			// a reset can still get through.
			go func() {
				if err := dispatch(r.Context(), c, cm); err != nil {
					send(r.Context(), conn, types.ServerMessage{Type: types.MsgError, Error: game.Describe(err)})
				}
			}()
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func dispatch(ctx context.Context, c *session.Controller, m types.ClientMessage) error {
	switch m.Type {
	case "CreateGame":
		mode, err := game.ParseMode(m.Mode)
		if err != nil {
			return err
		}
		return c.CreateGame(ctx, mode)
	case "EditShip":
		at, err := coord(m)
		if err != nil {
			return err
		}
		return c.EditShip(ctx, m.ShipID, at, fleet.Orientation(strings.ToUpper(m.Orientation)))
	case "ResetDraft":
		return c.ResetDraft(ctx)
	case "SubmitPlacement":
		return c.SubmitPlacement(ctx)
	case "Fire":
		at, err := coord(m)
		if err != nil {
			return err
		}
		if err := c.Fire(ctx, at); !errors.Is(err, engine.ErrFireSuppressed) {
			return err
		}
		// Out of turn: nothing was sent and nothing changed.
		return nil
	case "Refresh":
		return c.Refresh(ctx)
	case "Reset":
		return c.Reset(ctx)
	default:
		return errUnknownType
	}
}

func coord(m types.ClientMessage) (board.Coord, error) {
	if m.Row == nil || m.Col == nil {
		return board.Coord{}, errMissingCoord
	}
	return board.Coord{Row: *m.Row, Col: *m.Col}, nil
}
