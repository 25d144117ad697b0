package request

// RegisterRequest is the request body for registering a player. An empty
// player id asks the server to generate one.
type RegisterRequest struct {
	PlayerID string `json:"player_id,omitempty"`
}

// EnqueueRequest is the request body for joining the queue. Rating is the
// sealed rating, base64 encoded in JSON.
type EnqueueRequest struct {
	Rating []byte `json:"rating"`
}
