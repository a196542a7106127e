package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battleships-client/internal/board"
	"github.com/DoyleJ11/battleships-client/internal/engine"
	"github.com/DoyleJ11/battleships-client/internal/fleet"
	"github.com/DoyleJ11/battleships-client/internal/game"
	"github.com/DoyleJ11/battleships-client/internal/hub"
	"github.com/DoyleJ11/battleships-client/internal/session"
	"github.com/DoyleJ11/battleships-client/pkg/types"
)

var errBadRequest = errors.New("invalid request body")
var errMissingCoord = errors.New("row and col are required")

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateSession(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for {
			code, err := GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
			_, ok, err := h.Create(r.Context(), code)
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			if ok {
				writeJSON(w, http.StatusCreated, types.SessionCreated{Code: code})
				return
			}
			log.Debug("collision on code, regenerating", zap.String("session", code))
		}
	}
}

// withSession resolves {code} to its controller or answers 404.
func withSession(h *hub.Hub) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := h.Get(r.Context(), chi.URLParam(r, "code"))
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			if c == nil {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), c)))
		})
	}
}

func controllerFrom(r *http.Request) *session.Controller {
	c, _ := session.FromContext(r.Context())
	return c
}

func GetSession(w http.ResponseWriter, r *http.Request) {
	respond(w, r, nil)
}

func DeleteSession(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := h.Remove(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CreateGame(w http.ResponseWriter, r *http.Request) {
	var req types.CreateGameRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, err)
		return
	}
	mode, err := game.ParseMode(req.Mode)
	if err != nil {
		respond(w, r, err)
		return
	}
	respond(w, r, controllerFrom(r).CreateGame(r.Context(), mode))
}

func EditShip(w http.ResponseWriter, r *http.Request) {
	var req types.MoveShipRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, err)
		return
	}
	if req.Row == nil || req.Col == nil {
		respond(w, r, errMissingCoord)
		return
	}
	start := board.Coord{Row: *req.Row, Col: *req.Col}
	o := fleet.Orientation(strings.ToUpper(req.Orientation))
	respond(w, r, controllerFrom(r).EditShip(r.Context(), chi.URLParam(r, "shipID"), start, o))
}

func ResetDraft(w http.ResponseWriter, r *http.Request) {
	respond(w, r, controllerFrom(r).ResetDraft(r.Context()))
}

func SubmitPlacement(w http.ResponseWriter, r *http.Request) {
	respond(w, r, controllerFrom(r).SubmitPlacement(r.Context()))
}

func Fire(w http.ResponseWriter, r *http.Request) {
	var req types.FireRequest
	if err := decode(r, &req); err != nil {
		respond(w, r, err)
		return
	}
	if req.Row == nil || req.Col == nil {
		respond(w, r, errMissingCoord)
		return
	}
	err := controllerFrom(r).Fire(r.Context(), board.Coord{Row: *req.Row, Col: *req.Col})
	if errors.Is(err, engine.ErrFireSuppressed) {
		// Out of turn: nothing was sent, answer with the unchanged view.
		err = nil
	}
	respond(w, r, err)
}

func Refresh(w http.ResponseWriter, r *http.Request) {
	respond(w, r, controllerFrom(r).Refresh(r.Context()))
}

func Reset(w http.ResponseWriter, r *http.Request) {
	respond(w, r, controllerFrom(r).Reset(r.Context()))
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// respond answers an action with its error, or with the view it left behind.
func respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, StatusFor(err), game.Describe(err))
		return
	}
	v, err := controllerFrom(r).View(r.Context())
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// StatusFor maps an action error to the HTTP status of the presentation API.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrBusy),
		errors.Is(err, engine.ErrWrongScreen),
		errors.Is(err, engine.ErrNoGame),
		errors.Is(err, engine.ErrNoDraft),
		errors.Is(err, engine.ErrReset):
		return http.StatusConflict
	case errors.Is(err, errMissingCoord),
		errors.Is(err, game.ErrUnknownMode),
		errors.Is(err, board.ErrOutOfBounds),
		errors.Is(err, fleet.ErrWrongComposition),
		errors.Is(err, fleet.ErrOutOfBounds),
		errors.Is(err, fleet.ErrOverlap),
		errors.Is(err, fleet.ErrUnknownShip),
		errors.Is(err, fleet.ErrBadOrientation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		// Service rejections plus transport and decode failures.
		return http.StatusBadGateway
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, types.ErrorResponse{Detail: detail})
}
