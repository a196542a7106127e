package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/engine"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

// Gateway is the remote game service as the controller sees it.
// *client.Client satisfies it.
type Gateway interface {
	CreateGame(ctx context.Context, mode game.Mode) (game.Ref, error)
	PlaceShips(ctx context.Context, gameID, playerID string, ships []fleet.Ship) (game.Session, error)
	State(ctx context.Context, gameID, playerID string) (game.Session, error)
	Fire(ctx context.Context, gameID, playerID string, target board.Coord) error
}

// run performs the effects of one transition. Calls go out on their own
// goroutine and report back with post.
func (c *Controller) run(effects []engine.Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case engine.CallCreateGame:
			go func() {
				ref, err := c.gw.CreateGame(c.ctx, e.Mode)
				if err != nil {
					c.post(c.failure(e.Epoch, engine.OriginAction, "create game", err))
					return
				}
				c.post(engine.GameCreated{Epoch: e.Epoch, Ref: ref})
			}()

		case engine.CallPlaceShips:
			go func() {
				s, err := c.gw.PlaceShips(c.ctx, e.GameID, e.PlayerID, e.Ships)
				if err != nil {
					c.post(c.failure(e.Epoch, engine.OriginAction, "place ships", err))
					return
				}
				c.post(engine.SnapshotReceived{Epoch: e.Epoch, Seq: e.Seq, Origin: engine.OriginAction, Session: s})
			}()

		case engine.CallFire:
			go func() {
				if err := c.gw.Fire(c.ctx, e.GameID, e.PlayerID, e.Target); err != nil {
					c.post(c.failure(e.Epoch, engine.OriginAction, "fire", err))
					return
				}
				c.post(engine.FireAccepted{Epoch: e.Epoch})
			}()

		case engine.CallState:
			ctx := c.ctx
			if e.Origin == engine.OriginPoll && c.pollCtx != nil {
				ctx = c.pollCtx
			}
			go func() {
				s, err := c.gw.State(ctx, e.GameID, e.PlayerID)
				if err != nil {
					c.post(c.failure(e.Epoch, e.Origin, "load state", err))
					return
				}
				c.post(engine.SnapshotReceived{Epoch: e.Epoch, Seq: e.Seq, Origin: e.Origin, Session: s})
			}()

		case engine.StartPolling:
			c.startPolling()
			c.log.Debug("polling started", zap.Duration("every", c.pollEvery))

		case engine.StopPolling:
			c.stopPolling()
			c.log.Debug("polling stopped")

		case engine.Complete:
			if c.pending != nil {
				c.pending <- e.Err
				c.pending = nil
			}
		}
	}
}

func (c *Controller) failure(epoch int, origin engine.Origin, op string, err error) engine.RequestFailed {
	if origin == engine.OriginPoll {
		c.log.Debug("poll failed", zap.String("op", op), zap.Error(err))
	} else {
		c.log.Warn("game service request failed", zap.String("op", op), zap.Error(err))
	}
	return engine.RequestFailed{Epoch: epoch, Origin: origin, Err: err}
}
