// Package workerproto defines message types exchanged between the pipeline
// and a remote build agent. Messages flow over WebSocket connections.
package workerproto

import "encoding/json"

// Envelope wraps all messages with a type discriminator.
// When marshaling, Payload can be any message struct.
// When unmarshaling, use EnvelopeRaw for type-based dispatch.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EnvelopeRaw is used for receiving messages where the payload
// needs to be unmarshaled based on the message type.
type EnvelopeRaw struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalEnvelope creates an envelope with the given type and payload
func MarshalEnvelope(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: msgType, Payload: payload})
}

// Pipeline -> Agent messages

// OrderMessage hands one work order to the agent
type OrderMessage struct {
	OrderID     string `json:"order_id"`
	ItemID      string `json:"item_id"`
	FeatureName string `json:"feature_name"`
	Prompt      string `json:"prompt"`
	ProjectRoot string `json:"project_root"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
}

// CancelMessage requests order cancellation
type CancelMessage struct {
	OrderID string `json:"order_id"`
}

// Agent -> Pipeline messages

// OutputMessage streams worker output lines
type OutputMessage struct {
	OrderID string `json:"order_id"`
	Stream  string `json:"stream"` // "stdout" or "stderr"
	Data    string `json:"data"`
}

// CompleteMessage reports a finished order
type CompleteMessage struct {
	OrderID      string  `json:"order_id"`
	Success      bool    `json:"success"`
	Detail       string  `json:"detail,omitempty"`
	DurationMs   int64   `json:"duration_ms"`
	TokensInput  int     `json:"tokens_input,omitempty"`
	TokensOutput int     `json:"tokens_output,omitempty"`
	CostUSD      float64 `json:"cost_usd,omitempty"`
}

// ErrorMessage reports an order that failed before completion
type ErrorMessage struct {
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

// Message type constants
const (
	TypeOrder    = "order"
	TypeCancel   = "cancel"
	TypeOutput   = "output"
	TypeComplete = "complete"
	TypeError    = "error"
	TypePing     = "ping"
	TypePong     = "pong"
)
