// Package room implements the room runtime: the per-room actor that
// owns membership, chat, editor state and round scoring, the
// process-wide registry, the websocket connection endpoint, and the
// wire protocol shared with the frontend.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/radixapp/radix/internal/domain"
	"github.com/radixapp/radix/internal/judge"
)

// deletionDelay is how long a room stays alive with no connections
// before it stops itself.
const deletionDelay = 30 * time.Second

// JudgeFunc runs code against test cases. Satisfied by
// (*judge.Runner).Judge; room tests substitute fakes.
type JudgeFunc func(ctx context.Context, language, code string, testCases []domain.TestCase) (*judge.Results, error)

type roomConnection struct {
	sink   Outbox
	userID uuid.UUID
}

type roomUser struct {
	connID uuid.UUID
	user   domain.User
}

// Room is a single-writer state machine for one room. All state is
// owned by the Run goroutine; everything else talks to it through the
// mailbox.
type Room struct {
	config   domain.RoomConfig
	problems []domain.Problem

	mailbox *Mailbox
	judge   JudgeFunc
	logger  *slog.Logger

	// onStop releases the registry entry after Run exits.
	onStop func()

	connections       map[uuid.UUID]roomConnection
	users             map[uuid.UUID]roomUser
	editorContents    map[uuid.UUID]string
	chat              *chatRing
	roundInProgress   bool
	problemCompletion map[uuid.UUID]map[int]struct{}
	usersFinished     int

	deletionDelay time.Duration
	deletionTimer *time.Timer
}

// NewRoom builds a room actor. Call Run on its own goroutine to start
// it.
func NewRoom(config domain.RoomConfig, problems []domain.Problem, judgeFn JudgeFunc, logger *slog.Logger) *Room {
	return &Room{
		config:            config,
		problems:          problems,
		mailbox:           newMailbox(),
		judge:             judgeFn,
		logger:            logger,
		connections:       make(map[uuid.UUID]roomConnection),
		users:             make(map[uuid.UUID]roomUser),
		editorContents:    make(map[uuid.UUID]string),
		chat:              newChatRing(),
		problemCompletion: make(map[uuid.UUID]map[int]struct{}),
		deletionDelay:     deletionDelay,
	}
}

// Mailbox is the write half handed out to connections and the registry.
func (r *Room) Mailbox() *Mailbox {
	return r.mailbox
}

// Run drains the mailbox until a Stop command arrives. The room starts
// empty, so the deletion timer is primed immediately.
func (r *Room) Run() {
	r.logger.Info("room started", "room", r.config.Name)
	r.primeDeletion()

	for cmd := range r.mailbox.ch {
		if stop := r.handleCommand(cmd); stop {
			break
		}
	}

	r.cancelDeletion()
	// A Stop can arrive while members are still connected; tell their
	// write loops to close the sockets.
	for id, conn := range r.connections {
		select {
		case conn.sink <- ConnStop{}:
		default:
			r.logger.Warn("dropping stop for slow connection",
				"room", r.config.Name, "connection_id", id)
		}
	}
	r.mailbox.close()
	if r.onStop != nil {
		r.onStop()
	}
	r.logger.Info("room stopped", "room", r.config.Name)
}

func (r *Room) handleCommand(cmd Command) bool {
	switch c := cmd.(type) {
	case AddConnection:
		r.handleAddConnection(c)
	case RemoveConnection:
		r.handleRemoveConnection(c)
	case ClientSent:
		r.handleClientSent(c)
	case Stop:
		return true
	case stopIdle:
		return len(r.connections) == 0
	}
	return false
}

func (r *Room) handleAddConnection(c AddConnection) {
	r.cancelDeletion()

	r.connections[c.ConnID] = roomConnection{sink: c.Sink, userID: c.User.ID}
	r.users[c.User.ID] = roomUser{connID: c.ConnID, user: c.User}
	r.editorContents[c.User.ID] = ""
	r.problemCompletion[c.User.ID] = make(map[int]struct{})

	data, err := EncodeChatHistory(r.chat.history())
	r.sendTo(c.Sink, data, err)
	data, err = EncodeSetRoomConfig(r.configPayload())
	r.sendTo(c.Sink, data, err)
	r.sendChatMessage(NewConnectionMessage(c.User.Name))
	r.broadcastUsers()

	if r.roundInProgress {
		data, err = EncodeSetProblems(r.publicProblems())
		r.sendTo(c.Sink, data, err)
	}
}

func (r *Room) handleRemoveConnection(c RemoveConnection) {
	conn, ok := r.connections[c.ConnID]
	if !ok {
		r.logger.Warn("removing unknown connection", "room", r.config.Name, "connection_id", c.ConnID)
		return
	}
	user := r.users[conn.userID].user

	delete(r.connections, c.ConnID)
	delete(r.users, conn.userID)
	delete(r.editorContents, conn.userID)
	delete(r.problemCompletion, conn.userID)

	r.sendChatMessage(NewDisconnectionMessage(user.Name))
	r.broadcastUsers()

	if len(r.connections) == 0 {
		r.primeDeletion()
	}
}

func (r *Room) handleClientSent(c ClientSent) {
	conn, ok := r.connections[c.ConnID]
	if !ok {
		// Raced with removal; the frame is stale.
		return
	}
	user := r.users[conn.userID].user

	switch c.Frame.T {
	case ClientPing:

	case ClientSendChatMessage:
		var payload SendChatMessagePayload
		if !r.decodePayload(c.Frame, &payload) {
			return
		}
		r.sendChatMessage(NewUserChatMessage(user.ToPublic(), payload.Content))

	case ClientBeginRound:
		if r.roundInProgress {
			return
		}
		r.roundInProgress = true
		r.sendChatMessage(NewRoundBeginMessage())
		r.broadcast(EncodeSetProblems(r.publicProblems()))

	case ClientSetEditorContent:
		var payload SetEditorContentPayload
		if !r.decodePayload(c.Frame, &payload) {
			return
		}
		r.editorContents[user.ID] = payload.Content

	case ClientTestCode:
		r.handleTestCode(conn, user, c.Frame)

	case ClientSubmitCode:
		r.handleSubmitCode(conn, user, c.Frame)
	}
}

func (r *Room) handleTestCode(conn roomConnection, user domain.User, frame Envelope) {
	var payload TestCodePayload
	if !r.decodePayload(frame, &payload) {
		return
	}
	if !judge.Supported(payload.Language) {
		return
	}
	code, ok := r.editorContents[user.ID]
	if !ok {
		return
	}

	results, err := r.judge(context.Background(), payload.Language, code, payload.TestCases)
	if err != nil {
		data, encErr := EncodeSetTestResponse(NewTestResponseError(err.Error()))
		r.sendTo(conn.sink, data, encErr)
		return
	}
	data, encErr := EncodeSetTestResponse(NewTestResponseRan(results.FailedTests, results.OkayTests))
	r.sendTo(conn.sink, data, encErr)
}

func (r *Room) handleSubmitCode(conn roomConnection, user domain.User, frame Envelope) {
	var payload SubmitCodePayload
	if !r.decodePayload(frame, &payload) {
		return
	}
	if !judge.Supported(payload.Language) {
		return
	}
	code, ok := r.editorContents[user.ID]
	if !ok {
		return
	}
	if payload.ProblemIndex < 0 || payload.ProblemIndex >= len(r.problems) {
		return
	}
	problem := r.problems[payload.ProblemIndex]

	r.sendChatMessage(NewUserSubmittedMessage(user.Name))

	results, err := r.judge(context.Background(), payload.Language, code, problem.TestCases)
	if err != nil {
		data, encErr := EncodeSetTestResponse(NewTestResponseError(err.Error()))
		r.sendTo(conn.sink, data, encErr)
		return
	}

	if len(results.FailedTests) == 0 {
		data, encErr := EncodeSetTestResponse(NewTestResponseAllPassed(results.Runtime))
		r.sendTo(conn.sink, data, encErr)
		r.sendChatMessage(NewUserProblemCompletionMessage(user.Name, payload.ProblemIndex))

		completed := r.problemCompletion[user.ID]
		if len(completed) == len(r.problems) {
			// Already finished every problem; resubmission changes nothing.
			return
		}
		completed[payload.ProblemIndex] = struct{}{}
		if len(completed) == len(r.problems) {
			r.usersFinished++
			r.sendChatMessage(NewUserFinishedMessage(user.Name, r.usersFinished))
		}
		return
	}

	data, encErr := EncodeSetTestResponse(NewTestResponseRan(results.FailedTests[:1], nil))
	r.sendTo(conn.sink, data, encErr)
}

// sendChatMessage appends to the ring and fans the message out.
func (r *Room) sendChatMessage(msg ChatMessage) {
	r.chat.push(msg)
	r.broadcast(EncodeChatMessage(msg))
}

// broadcast sends one pre-encoded frame to every connection. Sends
// never block; a full sink drops the frame and is logged, the peer's
// own exit path handles cleanup.
func (r *Room) broadcast(data []byte, err error) {
	if err != nil {
		r.logger.Error("encode broadcast", "room", r.config.Name, "error", err)
		return
	}
	for id, conn := range r.connections {
		select {
		case conn.sink <- ConnSend{Data: data}:
		default:
			r.logger.Warn("dropping broadcast for slow connection",
				"room", r.config.Name, "connection_id", id)
		}
	}
}

// sendTo delivers one frame to a single sink with the same
// non-blocking discipline as broadcast.
func (r *Room) sendTo(sink Outbox, data []byte, err error) {
	if err != nil {
		r.logger.Error("encode server command", "room", r.config.Name, "error", err)
		return
	}
	select {
	case sink <- ConnSend{Data: data}:
	default:
		r.logger.Warn("dropping frame for slow connection", "room", r.config.Name)
	}
}

func (r *Room) broadcastUsers() {
	users := make([]domain.PublicUser, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u.user.ToPublic())
	}
	r.broadcast(EncodeSetUsers(users))
}

func (r *Room) decodePayload(frame Envelope, dst any) bool {
	if err := json.Unmarshal(frame.C, dst); err != nil {
		r.logger.Warn("bad client payload", "room", r.config.Name, "tag", frame.T, "error", err)
		return false
	}
	return true
}

func (r *Room) configPayload() RoomConfigPayload {
	return RoomConfigPayload{
		Name:   r.config.Name,
		Public: r.config.Public,
		Owner:  r.config.Owner.ToPublic(),
	}
}

func (r *Room) publicProblems() []domain.PublicProblem {
	out := make([]domain.PublicProblem, 0, len(r.problems))
	for i := range r.problems {
		out = append(out, r.problems[i].ToPublic())
	}
	return out
}

// primeDeletion schedules a Stop for when the room has been empty for
// the full delay. No-op when a timer is already pending.
func (r *Room) primeDeletion() {
	if r.deletionTimer != nil {
		return
	}
	r.deletionTimer = time.AfterFunc(r.deletionDelay, func() {
		if err := r.mailbox.Send(stopIdle{}); err != nil {
			r.logger.Error("stopping idle room", "room", r.config.Name, "error", err)
		}
	})
}

func (r *Room) cancelDeletion() {
	if r.deletionTimer != nil {
		r.deletionTimer.Stop()
		r.deletionTimer = nil
	}
}
