package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chat-room/internal/observability"
	"chat-room/internal/room"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	frameBuffer    = 16
)

// Client is one websocket connection. It is the room.View of its controller:
// snapshots coalesce so only the newest pending one is written, other frames
// are queued.
type Client struct {
	info ConnInfo
	conn *websocket.Conn
	log  zerolog.Logger

	mu       sync.Mutex
	snapshot []byte
	wake     chan struct{}
	frames   chan []byte

	done      chan struct{}
	closeOnce sync.Once
	writerEnd chan struct{}
}

var _ room.View = (*Client)(nil)

func newClient(conn *websocket.Conn, info ConnInfo, log zerolog.Logger) *Client {
	return &Client{
		info:      info,
		conn:      conn,
		log:       log,
		wake:      make(chan struct{}, 1),
		frames:    make(chan []byte, frameBuffer),
		done:      make(chan struct{}),
		writerEnd: make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.info.ConnID }

// Info returns the connection metadata.
func (c *Client) Info() ConnInfo { return c.info }

// Render queues snap, replacing any snapshot not yet written.
func (c *Client) Render(snap room.Snapshot) {
	data, err := json.Marshal(snapshotFrame{Type: FrameSnapshot, Snapshot: snap})
	if err != nil {
		c.log.Error().Err(err).Msg("encode snapshot")
		return
	}
	c.mu.Lock()
	c.snapshot = data
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Notice queues a user-visible message.
func (c *Client) Notice(message string) {
	c.enqueue(noticeFrame{Type: FrameNotice, Message: message})
}

func (c *Client) signedOut() {
	c.enqueue(signedOutFrame{Type: FrameSignedOut})
}

func (c *Client) enqueue(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error().Err(err).Msg("encode frame")
		return
	}
	select {
	case c.frames <- data:
	default:
		c.log.Warn().Msg("frame queue full, dropping frame")
	}
}

// Close stops the writer after flushing queued frames and closes the socket.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		select {
		case <-c.writerEnd:
		case <-time.After(writeWait):
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
		_ = c.conn.Close()
	})
}

func (c *Client) takeSnapshot() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.snapshot
	c.snapshot = nil
	return data
}

func (c *Client) write(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		close(c.writerEnd)
	}()

	for {
		select {
		case <-c.done:
			c.flush()
			return
		case <-c.wake:
			if data := c.takeSnapshot(); data != nil {
				if err := c.write(data); err != nil {
					c.writeFailed(err)
					return
				}
			}
		case data := <-c.frames:
			if err := c.write(data); err != nil {
				c.writeFailed(err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.writeFailed(err)
				return
			}
		}
	}
}

// flush writes the pending snapshot and queued frames before close.
func (c *Client) flush() {
	if data := c.takeSnapshot(); data != nil {
		if err := c.write(data); err != nil {
			return
		}
	}
	for {
		select {
		case data := <-c.frames:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) writeFailed(err error) {
	c.log.Warn().Err(err).Msg("websocket write error")
	observability.IncWSEvent("ws_error")
	// unblocks the read loop, which then tears the connection down
	_ = c.conn.Close()
}
