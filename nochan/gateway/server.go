// Package gateway is the OneBot 11 WebSocket transport: it accepts the
// NapCatQQ connection, decodes pushed events, hands message events to the
// dispatcher, and correlates outbound API calls with their responses.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	ports "github.com/nochan-bot/nochan/nochan/dispatch/ports"
)

// apiTimeout bounds how long an API call waits for its correlated response.
const apiTimeout = 10 * time.Second

// MessageHandler is the dispatch entry point the gateway feeds.
type MessageHandler interface {
	Handle(ctx context.Context, msg ports.Message)
}

// Server bridges one NapCatQQ connection to the dispatcher. Only a single
// gateway connection is expected at a time; a newcomer replaces the previous
// one.
type Server struct {
	host    string
	port    int
	handler MessageHandler
	logger  zerolog.Logger

	upgrader websocket.Upgrader

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	// bot's own QQ id, learned from the first event carrying self_id
	botID atomic.Int64

	pendingMu sync.Mutex
	pending   map[string]chan apiResponse
}

// NewServer creates the gateway server. handler is typically the dispatch
// orchestrator.
func NewServer(host string, port int, handler MessageHandler, logger zerolog.Logger) *Server {
	return &Server{
		host:    host,
		port:    port,
		handler: handler,
		logger:  logger.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			// NapCatQQ is not a browser; no origin policy applies
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pending: make(map[string]chan apiResponse),
	}
}

// Run listens for the gateway connection until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	httpServer := &http.Server{
		Addr: addr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.serveConnection(ctx, w, r)
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("Server ready, waiting for NapCatQQ connection")
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway server failed: %w", err)
	}
	return nil
}

// Reply sends a text reply back to the source of msg. Implements
// ports.ReplyFunc.
func (s *Server) Reply(ctx context.Context, msg ports.Message, text string) error {
	s.logger.Debug().Int("chars", len(text)).Str("text", truncate(text, 300)).Msg("Reply text")

	var action string
	params := map[string]any{"message": textSegments(text)}
	if msg.Scope == ports.ScopePrivate {
		action = "send_private_msg"
		params["user_id"] = msg.SenderID
	} else {
		action = "send_group_msg"
		params["group_id"] = msg.GroupID
	}

	resp, err := s.sendAPI(ctx, action, params)
	if err != nil {
		return err
	}
	if resp.Retcode != 0 {
		s.logger.Warn().Str("action", action).Int("retcode", resp.Retcode).Msg("Gateway API call rejected")
	}
	return nil
}

func (s *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("NapCatQQ connected")

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.connMu.Unlock()

	s.readLoop(ctx, conn)

	s.connMu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.connMu.Unlock()
	s.logger.Info().Msg("Connection handler exited")
}

// readLoop consumes frames until the connection drops. Message events are
// handled on their own goroutines so one slow agent call never blocks the
// loop (or heartbeats).
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn) {
	var tasks conc.WaitGroup
	defer tasks.Wait()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Connection closed")
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.logger.Warn().Str("raw", truncate(string(raw), 200)).Msg("Non-JSON frame received")
			continue
		}

		// API responses are correlated by echo, not dispatched as events
		if frame.Echo != "" && s.resolvePending(&frame) {
			continue
		}

		s.dispatchEvent(ctx, &frame, &tasks)
	}
}

func (s *Server) dispatchEvent(ctx context.Context, frame *inboundFrame, tasks *conc.WaitGroup) {
	if s.botID.Load() == 0 && frame.SelfID != 0 {
		s.botID.Store(frame.SelfID)
		s.logger.Info().Int64("bot_id", frame.SelfID).Msg("Bot QQ id learned")
	}

	switch frame.PostType {
	case postMetaEvent:
		switch frame.MetaEventType {
		case "lifecycle":
			s.logger.Info().Str("sub_type", frame.SubType).Msg("Lifecycle event")
		case "heartbeat":
			s.logger.Debug().Msg("Heartbeat received")
		default:
			s.logger.Debug().Str("meta_event_type", frame.MetaEventType).Msg("Unhandled meta event")
		}

	case postMessage:
		botID := s.botID.Load()
		if botID == 0 {
			s.logger.Warn().Msg("Received message before bot id was learned, ignoring")
			return
		}
		s.logger.Debug().
			Str("message_type", frame.MessageType).
			Int64("user_id", frame.UserID).
			Str("raw", truncate(frame.RawMessage, 150)).
			Msg("Raw message event")

		msg := convertMessage(frame, botID)
		tasks.Go(func() {
			s.handler.Handle(ctx, msg)
		})

	case postNotice:
		s.logger.Debug().Str("notice_type", frame.NoticeType).Msg("Unhandled notice event")

	case postRequest:
		s.logger.Debug().Str("request_type", frame.RequestType).Msg("Unhandled request event")

	default:
		s.logger.Debug().Str("post_type", frame.PostType).Msg("Unknown post_type")
	}
}

// sendAPI issues an echo-correlated OneBot API request and waits for its
// response.
func (s *Server) sendAPI(ctx context.Context, action string, params any) (apiResponse, error) {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return apiResponse{}, fmt.Errorf("cannot send %s: no active gateway connection", action)
	}

	echo := uuid.NewString()[:8]
	ch := make(chan apiResponse, 1)
	s.pendingMu.Lock()
	s.pending[echo] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, echo)
		s.pendingMu.Unlock()
	}()

	req := apiRequest{Action: action, Params: params, Echo: echo}
	s.logger.Debug().Str("action", action).Str("echo", echo).Msg("API request")

	s.writeMu.Lock()
	err := conn.WriteJSON(req)
	s.writeMu.Unlock()
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to send %s: %w", action, err)
	}

	select {
	case resp := <-ch:
		s.logger.Debug().Str("action", action).Str("status", resp.Status).Int("retcode", resp.Retcode).Msg("API response")
		return resp, nil
	case <-time.After(apiTimeout):
		return apiResponse{}, fmt.Errorf("API call %s timed out", action)
	case <-ctx.Done():
		return apiResponse{}, ctx.Err()
	}
}

// resolvePending delivers an API response to its waiter. Returns false when
// no request is waiting on the frame's echo.
func (s *Server) resolvePending(frame *inboundFrame) bool {
	s.pendingMu.Lock()
	ch, ok := s.pending[frame.Echo]
	if ok {
		delete(s.pending, frame.Echo)
	}
	s.pendingMu.Unlock()

	if !ok {
		return false
	}
	ch <- apiResponse{Status: frame.Status, Retcode: frame.Retcode, Data: frame.Data}
	return true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
