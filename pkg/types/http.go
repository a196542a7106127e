package types

type SessionCreated struct {
	Code string `json:"code"`
}

type CreateGameRequest struct {
	Mode string `json:"mode"`
}

type MoveShipRequest struct {
	Row         *int   `json:"row"`
	Col         *int   `json:"col"`
	Orientation string `json:"orientation"`
}

type FireRequest struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
