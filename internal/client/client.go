// Package client talks to the remote game service over HTTP. It is the only
// code that knows the wire format.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
)

const (
	contentType     = "application/json"
	requestIDHeader = "X-Request-ID"
)

type Client struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// New returns a client for the service at baseURL. A zero timeout leaves
// requests unbounded except by their context.
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.Named("client"),
	}
}

func (c *Client) CreateGame(ctx context.Context, mode game.Mode) (game.Ref, error) {
	req := CreateGameRequest{Mode: string(mode), BoardSize: board.Size}
	var resp CreateGameResponse
	if err := c.do(ctx, "CreateGame", http.MethodPost, c.buildURL(nil, "games"), req, &resp); err != nil {
		return game.Ref{}, err
	}
	// The local player always takes the first seat.
	return game.Ref{GameID: resp.GameID, PlayerID: resp.Player1ID}, nil
}

func (c *Client) PlaceShips(ctx context.Context, gameID, playerID string, ships []fleet.Ship) (game.Session, error) {
	req := PlaceShipsRequest{PlayerID: playerID, Ships: shipsPayload(ships)}
	var resp StateResponse
	if err := c.do(ctx, "PlaceShips", http.MethodPost, c.buildURL(nil, "games", gameID, "place-ships"), req, &resp); err != nil {
		return game.Session{}, err
	}
	s, err := resp.toSession(gameID, playerID)
	if err != nil {
		return game.Session{}, fmt.Errorf("PlaceShips: decode snapshot: %w", err)
	}
	return s, nil
}

func (c *Client) State(ctx context.Context, gameID, playerID string) (game.Session, error) {
	query := url.Values{"player_id": {playerID}}
	var resp StateResponse
	if err := c.do(ctx, "State", http.MethodGet, c.buildURL(query, "games", gameID, "state"), nil, &resp); err != nil {
		return game.Session{}, err
	}
	s, err := resp.toSession(gameID, playerID)
	if err != nil {
		return game.Session{}, fmt.Errorf("State: decode snapshot: %w", err)
	}
	return s, nil
}

// Fire only reports whether the shot was accepted; the outcome is read back
// with State.
func (c *Client) Fire(ctx context.Context, gameID, playerID string, target board.Coord) error {
	req := FireRequest{PlayerID: playerID, Coord: Coord{Row: target.Row, Col: target.Col}}
	return c.do(ctx, "Fire", http.MethodPost, c.buildURL(nil, "games", gameID, "fire"), req, nil)
}

func (c *Client) do(ctx context.Context, op, method, urlPath string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: json.Marshal: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, urlPath, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: client.Do(req): %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug("game service call",
		zap.String("op", op),
		zap.String("request_id", req.Header.Get(requestIDHeader)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &game.ServiceError{Op: op, Status: resp.StatusCode, Message: readError(resp.Status, data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return fmt.Errorf("%s: empty response body", op)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: error decoding response body: %w", op, err)
	}
	return nil
}

// readError turns a failed response into one readable line: the "detail"
// string when present, otherwise the body itself, otherwise the status.
func readError(status string, data []byte) string {
	text := strings.TrimSpace(string(data))

	var er ErrorResponse
	if json.Unmarshal(data, &er) == nil {
		if detail, ok := er.Detail.(string); ok && detail != "" {
			return detail
		}
	}
	if text != "" {
		return text
	}
	return "request failed: " + status
}

func (c *Client) buildURL(query url.Values, elems ...string) string {
	baseURL, _ := url.Parse(c.baseURL)
	for i, e := range elems {
		elems[i] = url.PathEscape(e)
	}
	u := baseURL.JoinPath(elems...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("newRequest: http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set(requestIDHeader, uuid.NewString())
	return req, nil
}
