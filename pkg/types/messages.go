// Package types holds the JSON messages of the presentation API: the
// WebSocket protocol and the bodies of the HTTP routes.
package types

import "github.com/DoyleJ11/battleships-client/internal/engine"

// Client -> Server over the WebSocket.
//
//	CreateGame:      mode: "pve" | "pvp"
//	EditShip:        ship_id, row, col, orientation: "H" | "V"
//	ResetDraft:      {}
//	SubmitPlacement: {}
//	Fire:            row, col
//	Refresh:         {}
//	Reset:           {}
type ClientMessage struct {
	Type        string `json:"type"`
	Mode        string `json:"mode,omitempty"`
	ShipID      string `json:"ship_id,omitempty"`
	Row         *int   `json:"row,omitempty"`
	Col         *int   `json:"col,omitempty"`
	Orientation string `json:"orientation,omitempty"`
}

const (
	MsgView  = "View"
	MsgError = "Error"
)

// ServerMessage is either a View pushed after every state change or an
// Error answering one client message.
type ServerMessage struct {
	Type    string       `json:"type"` // "View" | "Error"
	Version int          `json:"version,omitempty"`
	View    *engine.View `json:"view,omitempty"`
	Error   string       `json:"error,omitempty"`
}
