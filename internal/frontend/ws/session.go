package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/africauniverse/gameserver/internal/config"
	"github.com/africauniverse/gameserver/internal/dispatcher"
	"github.com/africauniverse/gameserver/internal/game/registry"
	"github.com/africauniverse/gameserver/internal/observability"
	"github.com/africauniverse/gameserver/internal/protocol"
)

// Session owns one connection's lifecycle: Connecting (identity
// assigned) → Active (registry entry visible, loops running) → Closing
// (either loop exits) → Closed (registry entry removed, never reused).
type Session struct {
	id   uuid.UUID
	conn *websocket.Conn
	cfg  config.WebsocketConfig

	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics

	out      *registry.Outbound
	teardown sync.Once
	mu       sync.Mutex
	closed   bool
}

func newSession(conn *websocket.Conn, cfg config.WebsocketConfig, reg *registry.Registry, disp *dispatcher.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		id:         uuid.New(),
		conn:       conn,
		cfg:        cfg,
		registry:   reg,
		dispatcher: disp,
		logger:     logger,
		metrics:    metrics,
	}
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// run registers the session, pumps the read and write loops, and blocks
// until the connection is torn down.
func (s *Session) run() {
	if !s.register() {
		// Teardown fired before this goroutine started; the registry
		// must stay untouched so the identity is never resurrected.
		return
	}

	s.logger.Info("client connected",
		zap.String("session", s.id.String()),
		zap.String("remote_addr", s.conn.RemoteAddr().String()),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()

	s.readLoop()

	// Closing → Closed. Removal runs whatever ended the read loop:
	// peer close, protocol violation, or transport error.
	s.close()
	wg.Wait()

	s.logger.Info("client disconnected",
		zap.String("session", s.id.String()),
	)
}

// register makes the Connecting → Active transition: the entry becomes
// visible to listPlayers and challenge lookups from other sessions as
// soon as the outbound channel is attached. It reports false without
// registering anything when close already ran, which happens when the
// server stops between accepting the connection and the session
// goroutine being scheduled.
func (s *Session) register() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.registry.Upsert(s.id, "")
	s.out = registry.NewOutbound(s.id.String(), s.cfg.SendBuffer)
	s.registry.AttachOutbound(s.id, s.out)
	return true
}

// close tears the session down exactly once: the registry entry is
// removed (closing the outbound channel, which stops the write loop)
// and the connection is closed. A session closed before register ran
// can never register afterwards.
func (s *Session) close() {
	s.teardown.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.registry.Remove(s.id)
		s.metrics.ConnectedPlayers.Dec()
		_ = s.conn.Close()
	})
}

// readLoop reads frames until the connection dies. Text frames are
// decoded and dispatched; binary frames are ignored; a malformed frame
// is logged and dropped without closing the connection.
func (s *Session) readLoop() {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		msgType, frame, err := s.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				// Clean close handshake, nothing worth logging.
			case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				s.logger.Warn("read failed",
					zap.String("session", s.id.String()),
					zap.Error(err),
				)
			default:
				// Abnormal closes and raw transport errors: dropped
				// TCP connections, read deadline expiry, teardown
				// closing the socket under the reader.
				s.logger.Debug("connection lost",
					zap.String("session", s.id.String()),
					zap.Error(err),
				)
			}
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}

		in, err := protocol.Decode(frame)
		if err != nil {
			s.metrics.DecodeFailures.Inc()
			if errors.Is(err, protocol.ErrUnknownType) {
				s.logger.Warn("dropping frame with unknown type",
					zap.String("session", s.id.String()),
					zap.Error(err),
				)
			} else {
				s.logger.Warn("dropping malformed frame",
					zap.String("session", s.id.String()),
					zap.Error(err),
				)
			}
			continue
		}

		s.dispatcher.Dispatch(s.id, in)
	}
}

// writeLoop pumps outbound frames onto the connection and keeps it
// alive with periodic pings. It exits when the outbound channel closes
// (teardown) or a write fails.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.out.Frames():
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if !ok {
				// Registry removal closed the channel; say goodbye.
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Warn("write failed",
					zap.String("session", s.id.String()),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
