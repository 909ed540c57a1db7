package room

import (
	"sync"

	"github.com/google/uuid"

	"github.com/radixapp/radix/internal/domain"
)

const mailboxCapacity = 256

// Command is a message delivered to a room actor's mailbox.
type Command interface {
	isCommand()
}

// AddConnection registers a new websocket connection with the room.
type AddConnection struct {
	ConnID uuid.UUID
	Sink   Outbox
	User   domain.User
}

// RemoveConnection deregisters a connection. Sent by the connection's
// own exit path; unknown IDs are ignored.
type RemoveConnection struct {
	ConnID uuid.UUID
}

// ClientSent carries one decoded client frame into the room.
type ClientSent struct {
	ConnID uuid.UUID
	Frame  Envelope
}

// Stop terminates the room actor.
type Stop struct{}

// stopIdle is what the deletion timer sends. Unlike Stop it only takes
// effect if the room is still empty when it is dispatched, so a join
// queued ahead of it keeps the room alive.
type stopIdle struct{}

func (AddConnection) isCommand()    {}
func (RemoveConnection) isCommand() {}
func (ClientSent) isCommand()       {}
func (Stop) isCommand()             {}
func (stopIdle) isCommand()         {}

// Mailbox is the write half of a room's command channel. Sends to a
// room whose actor has exited fail with domain.ErrRoomStopped instead
// of blocking forever.
type Mailbox struct {
	ch   chan Command
	done chan struct{}
	once sync.Once
}

func newMailbox() *Mailbox {
	return &Mailbox{
		ch:   make(chan Command, mailboxCapacity),
		done: make(chan struct{}),
	}
}

// Send delivers a command to the room actor.
func (m *Mailbox) Send(cmd Command) error {
	select {
	case <-m.done:
		return domain.ErrRoomStopped
	default:
	}
	select {
	case m.ch <- cmd:
		return nil
	case <-m.done:
		return domain.ErrRoomStopped
	}
}

// close marks the mailbox stopped. Called once by the actor on exit.
func (m *Mailbox) close() {
	m.once.Do(func() { close(m.done) })
}

// ============================================================================
// Connection sink
// ============================================================================

const outboxCapacity = 100

// ConnCommand is a message for a connection's write loop.
type ConnCommand interface {
	isConnCommand()
}

// ConnSend writes one prepared text frame to the socket.
type ConnSend struct {
	Data []byte
}

// ConnStop tells the write loop to close the socket and exit.
type ConnStop struct{}

func (ConnSend) isConnCommand() {}
func (ConnStop) isConnCommand() {}

// Outbox is a connection's bounded inbox of write commands. The room
// never blocks on it; frames to a backed-up connection are dropped.
type Outbox chan ConnCommand

func newOutbox() Outbox {
	return make(Outbox, outboxCapacity)
}
