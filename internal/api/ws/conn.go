package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/davidthedutch/vibe-control-panel/relay/internal/domain/session"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/infrastructure/monitoring"
	"github.com/davidthedutch/vibe-control-panel/relay/internal/protocol"
)

// ErrConnectionClosed is returned by Send after the connection is closed.
var ErrConnectionClosed = errors.New("connection closed")

// connection adapts a websocket to session.Transport.
type connection struct {
	ws      *websocket.Conn
	cfg     Config
	metrics *monitoring.Metrics
	logger  *zap.Logger

	queue     chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newConnection(ws *websocket.Conn, cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *connection {
	return &connection{
		ws:      ws,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		queue:   make(chan []byte, cfg.SendQueue),
		closed:  make(chan struct{}),
	}
}

// Send implements session.Transport. It blocks while the send queue is full,
// which stalls the shell's output pump instead of buffering without bound.
func (c *connection) Send(frame protocol.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", frame.FrameType(), err)
	}

	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.queue <- data:
		c.metrics.RecordWSMessage("out", frame.FrameType())
		return nil
	case <-c.closed:
		return ErrConnectionClosed
	}
}

// Close implements session.Transport. Frames still queued are dropped.
func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// readPump feeds client frames to the session until the socket fails.
func (c *connection) readPump(ctx context.Context, sess *session.Session) error {
	defer c.Close()

	c.ws.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return c.readError(err)
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))

		if kind == websocket.BinaryMessage {
			c.metrics.RecordWSMessage("in", "binary")
		} else {
			c.metrics.RecordWSMessage("in", "text")
		}

		if err := c.handle(ctx, sess, data); err != nil {
			return err
		}
	}
}

// handle isolates a panic in message handling to this connection.
func (c *connection) handle(ctx context.Context, sess *session.Session, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while handling message", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic in message handler: %v", r)
		}
	}()
	sess.Handle(ctx, data)
	return nil
}

// writePump is the only goroutine that writes data frames to the socket.
func (c *connection) writePump(ctx context.Context) error {
	defer c.Close()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.queue:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return c.writeError(err)
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return c.writeError(err)
			}
		case <-c.closed:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// readError turns ordinary disconnects into nil.
func (c *connection) readError(err error) error {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return nil
	case c.isClosed(), errors.Is(err, net.ErrClosed):
		return nil
	default:
		return fmt.Errorf("read: %w", err)
	}
}

func (c *connection) writeError(err error) error {
	if c.isClosed() || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return fmt.Errorf("write: %w", err)
}

func (c *connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
