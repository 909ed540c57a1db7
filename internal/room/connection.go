package room

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/radixapp/radix/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Connection adapts one upgraded websocket to a room: a read pump that
// decodes client frames into ClientSent commands, and a write loop
// driven by the connection's outbox.
type Connection struct {
	id     uuid.UUID
	user   domain.User
	ws     *websocket.Conn
	room   *Mailbox
	outbox Outbox
	logger *slog.Logger
}

// NewConnection registers a fresh connection with the room. On error
// the caller still owns the socket and should send a final error frame
// before closing it.
func NewConnection(ws *websocket.Conn, user domain.User, room *Mailbox, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		id:     uuid.New(),
		user:   user,
		ws:     ws,
		room:   room,
		outbox: newOutbox(),
		logger: logger,
	}
	if err := room.Send(AddConnection{ConnID: c.id, Sink: c.outbox, User: user}); err != nil {
		return nil, err
	}
	return c, nil
}

// Run pumps in both directions until the socket closes or the room
// tells the connection to stop, then deregisters from the room.
// Blocks until done; the caller releases the user's registry slot
// afterwards.
func (c *Connection) Run() {
	stopWrite := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(stopWrite)
	}()

	c.readLoop()
	close(stopWrite)
	wg.Wait()

	if err := c.room.Send(RemoveConnection{ConnID: c.id}); err != nil {
		c.logger.Warn("deregister connection", "connection_id", c.id, "error", err)
	}
	_ = c.ws.Close()
}

func (c *Connection) readLoop() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read", "connection_id", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frame, err := DecodeClientCommand(data)
		if err != nil {
			c.logger.Warn("dropping bad client frame", "connection_id", c.id, "error", err)
			continue
		}
		if err := c.room.Send(ClientSent{ConnID: c.id, Frame: frame}); err != nil {
			c.logger.Warn("room unavailable", "connection_id", c.id, "error", err)
			return
		}
	}
}

func (c *Connection) writeLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return

		case cmd := <-c.outbox:
			switch v := cmd.(type) {
			case ConnSend:
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.ws.WriteMessage(websocket.TextMessage, v.Data); err != nil {
					c.logger.Warn("write frame", "connection_id", c.id, "error", err)
				}
			case ConnStop:
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				// Unblocks the read pump so Run can finish.
				_ = c.ws.Close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
