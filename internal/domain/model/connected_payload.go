package model

// ServerVersion is reported to clients in the connection handshake. Overridden at build time.
var ServerVersion = "0.0.0"

// ConnectedPayload represents the data sent to the client upon successful connection.
type ConnectedPayload struct {
	Ok            bool     `json:"ok"`
	ConnectionID  string   `json:"connection_id"`
	ServerVersion string   `json:"server_version"`
	Tags          []string `json:"tags"`
}
