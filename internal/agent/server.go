// Package agent runs the remote build agent: a WebSocket endpoint that
// accepts work orders from a pipeline and executes them with a local worker.
package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/worker"
	"github.com/yensi-aiorg/nc-dev-system-sub001/internal/workerproto"
)

// defaultOrderTimeout bounds orders that arrive without their own timeout.
const defaultOrderTimeout = 600 * time.Second

// Server accepts orders over WebSocket and executes them sequentially per
// connection. The pipeline opens one connection per order.
type Server struct {
	worker   worker.Worker
	addr     string
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewServer creates an agent server executing orders with w.
func NewServer(w worker.Worker, addr string, log zerolog.Logger) *Server {
	return &Server{
		worker: w,
		addr:   addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		log: log.With().Str("component", "agent").Logger(),
	}
}

// Start listens until the HTTP server fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.log.Info().Str("addr", s.addr).Msg("agent listening")
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env workerproto.EnvelopeRaw
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed message")
			continue
		}
		if env.Type != workerproto.TypeOrder {
			continue
		}

		var order workerproto.OrderMessage
		if err := json.Unmarshal(env.Payload, &order); err != nil {
			s.send(conn, workerproto.TypeError, workerproto.ErrorMessage{Message: "malformed order"})
			continue
		}

		s.runOrder(conn, order)
	}
}

func (s *Server) runOrder(conn *websocket.Conn, msg workerproto.OrderMessage) {
	timeout := defaultOrderTimeout
	if msg.TimeoutSecs > 0 {
		timeout = time.Duration(msg.TimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info().Str("order", msg.OrderID).Str("feature", msg.FeatureName).Msg("executing order")
	start := time.Now()

	result, err := s.worker.Build(ctx, worker.Order{
		OrderID:     msg.OrderID,
		ItemID:      msg.ItemID,
		FeatureName: msg.FeatureName,
		Prompt:      msg.Prompt,
		ProjectRoot: msg.ProjectRoot,
	})
	if err != nil {
		s.send(conn, workerproto.TypeError, workerproto.ErrorMessage{
			OrderID: msg.OrderID,
			Message: err.Error(),
		})
		return
	}

	s.send(conn, workerproto.TypeComplete, workerproto.CompleteMessage{
		OrderID:      msg.OrderID,
		Success:      result.Success,
		Detail:       result.Detail,
		DurationMs:   time.Since(start).Milliseconds(),
		TokensInput:  result.TokensInput,
		TokensOutput: result.TokensOutput,
		CostUSD:      result.CostUSD,
	})
}

func (s *Server) send(conn *websocket.Conn, msgType string, payload interface{}) {
	data, err := workerproto.MarshalEnvelope(msgType, payload)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log.Warn().Err(err).Msg("write failed")
	}
}
