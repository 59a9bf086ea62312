package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/workerproto"
)

// writeWait is time allowed to write a message to the agent
const writeWait = 10 * time.Second

// Remote dispatches work orders to a build agent over WebSocket. Each Build
// call opens its own connection so order streams never interleave.
type Remote struct {
	// AgentURL is the agent's WebSocket endpoint, e.g. ws://host:9090/ws.
	AgentURL string

	log zerolog.Logger
}

// NewRemote creates a remote worker for the given agent URL.
func NewRemote(agentURL string, log zerolog.Logger) *Remote {
	return &Remote{
		AgentURL: agentURL,
		log:      log.With().Str("component", "remote-worker").Logger(),
	}
}

// Build sends the order and waits for the agent's completion message.
func (r *Remote) Build(ctx context.Context, order Order) (*Result, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.AgentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing agent: %w", err)
	}
	defer conn.Close()

	// Cancel the read loop when the attempt deadline expires.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	timeoutSecs := 0
	if deadline, ok := ctx.Deadline(); ok {
		timeoutSecs = int(time.Until(deadline).Seconds())
	}

	msg := workerproto.OrderMessage{
		OrderID:     order.OrderID,
		ItemID:      order.ItemID,
		FeatureName: order.FeatureName,
		Prompt:      order.Prompt,
		ProjectRoot: order.ProjectRoot,
		TimeoutSecs: timeoutSecs,
	}
	if err := r.send(conn, workerproto.TypeOrder, msg); err != nil {
		return nil, fmt.Errorf("sending order: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("agent timed out: %w", ctx.Err())
			}
			return nil, fmt.Errorf("reading from agent: %w", err)
		}

		var env workerproto.EnvelopeRaw
		if err := json.Unmarshal(data, &env); err != nil {
			r.log.Warn().Err(err).Msg("skipping malformed agent message")
			continue
		}

		switch env.Type {
		case workerproto.TypeOutput:
			var out workerproto.OutputMessage
			if json.Unmarshal(env.Payload, &out) == nil {
				r.log.Debug().Str("item", order.ItemID).Str("stream", out.Stream).Msg(out.Data)
			}
		case workerproto.TypeComplete:
			var complete workerproto.CompleteMessage
			if err := json.Unmarshal(env.Payload, &complete); err != nil {
				return nil, fmt.Errorf("malformed completion: %w", err)
			}
			return &Result{
				Success:      complete.Success,
				Detail:       complete.Detail,
				TokensInput:  complete.TokensInput,
				TokensOutput: complete.TokensOutput,
				CostUSD:      complete.CostUSD,
			}, nil
		case workerproto.TypeError:
			var agentErr workerproto.ErrorMessage
			if json.Unmarshal(env.Payload, &agentErr) == nil {
				return &Result{Success: false, Detail: agentErr.Message}, nil
			}
			return &Result{Success: false, Detail: "agent error"}, nil
		case workerproto.TypePing:
			r.send(conn, workerproto.TypePong, nil)
		}
	}
}

// Prepare probes the agent endpoint once so pre-flight can warn early when
// the agent is unreachable.
func (r *Remote) Prepare(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.AgentURL, nil)
	if err != nil {
		return fmt.Errorf("probing agent %s: %w", r.AgentURL, err)
	}
	return conn.Close()
}

func (r *Remote) send(conn *websocket.Conn, msgType string, payload interface{}) error {
	data, err := workerproto.MarshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
