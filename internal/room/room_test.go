package room

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radixapp/radix/internal/domain"
	"github.com/radixapp/radix/internal/judge"
)

// =============================================================================
// Helpers
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testUser(name string) domain.User {
	return domain.User{ID: uuid.New(), Name: name, Image: name + ".png"}
}

func passingJudge(runtime int) JudgeFunc {
	return func(_ context.Context, _, _ string, testCases []domain.TestCase) (*judge.Results, error) {
		return &judge.Results{
			FailedTests: []judge.FailedTestCase{},
			OkayTests:   testCases,
			Runtime:     runtime,
		}, nil
	}
}

// startRoom runs a room actor with an effectively disabled idle timer
// and stops it when the test finishes.
func startRoom(t *testing.T, owner domain.User, problems []domain.Problem, judgeFn JudgeFunc) *Room {
	t.Helper()
	r := NewRoom(domain.RoomConfig{Name: "arena", Public: true, Owner: owner}, problems, judgeFn, testLogger())
	r.deletionDelay = time.Hour
	go r.Run()
	t.Cleanup(func() { stopRoom(t, r.mailbox) })
	return r
}

func stopRoom(t *testing.T, m *Mailbox) {
	t.Helper()
	_ = m.Send(Stop{})
	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("room did not stop")
	}
}

// join registers a fresh connection and returns its id and outbox.
func join(t *testing.T, r *Room, user domain.User) (uuid.UUID, Outbox) {
	t.Helper()
	id := uuid.New()
	outbox := newOutbox()
	require.NoError(t, r.mailbox.Send(AddConnection{ConnID: id, Sink: outbox, User: user}))
	return id, outbox
}

func recvFrame(t *testing.T, outbox Outbox) Envelope {
	t.Helper()
	select {
	case cmd := <-outbox:
		send, ok := cmd.(ConnSend)
		require.True(t, ok, "expected ConnSend, got %T", cmd)
		var env Envelope
		require.NoError(t, json.Unmarshal(send.Data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return Envelope{}
	}
}

func expectFrame(t *testing.T, outbox Outbox, tag string) Envelope {
	t.Helper()
	env := recvFrame(t, outbox)
	require.Equal(t, tag, env.T)
	return env
}

func expectChat(t *testing.T, outbox Outbox, variant string) ChatMessage {
	t.Helper()
	env := expectFrame(t, outbox, ServerChatMessage)
	var msg ChatMessage
	require.NoError(t, json.Unmarshal(env.C, &msg))
	require.Equal(t, variant, msg.T)
	return msg
}

func expectNoFrame(t *testing.T, outbox Outbox) {
	t.Helper()
	select {
	case cmd := <-outbox:
		t.Fatalf("unexpected command: %#v", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}

func expectUsers(t *testing.T, outbox Outbox, names ...string) {
	t.Helper()
	env := expectFrame(t, outbox, ServerSetUsers)
	var users []domain.PublicUser
	require.NoError(t, json.Unmarshal(env.C, &users))
	got := make([]string, 0, len(users))
	for _, u := range users {
		got = append(got, u.Name)
	}
	assert.ElementsMatch(t, names, got)
}

func clientSend(t *testing.T, r *Room, connID uuid.UUID, tag string, payload any) {
	t.Helper()
	env := Envelope{T: tag}
	if payload != nil {
		c, err := json.Marshal(payload)
		require.NoError(t, err)
		env.C = c
	}
	require.NoError(t, r.mailbox.Send(ClientSent{ConnID: connID, Frame: env}))
}

func sumProblem() domain.Problem {
	return domain.Problem{
		ID:    uuid.New(),
		Title: "Sum",
		TestCases: []domain.TestCase{
			{Input: "[1,2]", Output: "3"},
			{Input: "[5,7]", Output: "12"},
			{Input: "[0,0]", Output: "0"},
		},
	}
}

// =============================================================================
// Join / leave fan-out
// =============================================================================

func TestRoom_JoinLeaveFanout(t *testing.T) {
	owner := testUser("owner")
	u1, u2 := testUser("U1"), testUser("U2")
	r := startRoom(t, owner, nil, passingJudge(0))

	id1, c1 := join(t, r, u1)

	historyEnv := expectFrame(t, c1, ServerChatHistory)
	var history []ChatMessage
	require.NoError(t, json.Unmarshal(historyEnv.C, &history))
	assert.Empty(t, history)

	configEnv := expectFrame(t, c1, ServerSetRoomConfig)
	var config RoomConfigPayload
	require.NoError(t, json.Unmarshal(configEnv.C, &config))
	assert.Equal(t, "arena", config.Name)
	assert.Equal(t, owner.Name, config.Owner.Name)

	expectChat(t, c1, ChatConnection)
	expectUsers(t, c1, "U1")

	_, c2 := join(t, r, u2)

	// Existing member sees the join.
	expectChat(t, c1, ChatConnection)
	expectUsers(t, c1, "U1", "U2")

	// Joiner gets history including U1's connection message.
	historyEnv = expectFrame(t, c2, ServerChatHistory)
	history = nil
	require.NoError(t, json.Unmarshal(historyEnv.C, &history))
	require.Len(t, history, 1)
	assert.Equal(t, ChatConnection, history[0].T)

	expectFrame(t, c2, ServerSetRoomConfig)
	expectChat(t, c2, ChatConnection)
	expectUsers(t, c2, "U1", "U2")

	// U1 disconnects.
	require.NoError(t, r.mailbox.Send(RemoveConnection{ConnID: id1}))
	msg := expectChat(t, c2, ChatDisconnection)
	assert.Contains(t, string(msg.C), `"U1"`)
	expectUsers(t, c2, "U2")
}

func TestRoom_RemoveUnknownConnectionIsNoop(t *testing.T) {
	r := startRoom(t, testUser("owner"), nil, passingJudge(0))
	_, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	require.NoError(t, r.mailbox.Send(RemoveConnection{ConnID: uuid.New()}))
	expectNoFrame(t, c1)
}

func TestRoom_StaleClientFrameIsDropped(t *testing.T) {
	r := startRoom(t, testUser("owner"), nil, passingJudge(0))
	_, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, uuid.New(), ClientSendChatMessage, SendChatMessagePayload{Content: "ghost"})
	expectNoFrame(t, c1)
}

// =============================================================================
// Deletion timer
// =============================================================================

func TestRoom_StopsAfterIdleDelay(t *testing.T) {
	r := NewRoom(domain.RoomConfig{Name: "idle"}, nil, passingJudge(0), testLogger())
	r.deletionDelay = 50 * time.Millisecond
	go r.Run()

	select {
	case <-r.mailbox.done:
	case <-time.After(time.Second):
		t.Fatal("idle room did not stop itself")
	}

	assert.ErrorIs(t, r.mailbox.Send(Stop{}), domain.ErrRoomStopped)
}

func TestRoom_JoinCancelsDeletion(t *testing.T) {
	r := NewRoom(domain.RoomConfig{Name: "idle"}, nil, passingJudge(0), testLogger())
	r.deletionDelay = 100 * time.Millisecond
	go r.Run()

	id, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	// Well past the original deadline the room is still alive.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, r.mailbox.Send(ClientSent{ConnID: id, Frame: Envelope{T: ClientPing}}))

	// Emptying the room re-arms the timer.
	require.NoError(t, r.mailbox.Send(RemoveConnection{ConnID: id}))
	select {
	case <-r.mailbox.done:
	case <-time.After(time.Second):
		t.Fatal("emptied room did not stop itself")
	}
}

func TestRoom_IdleStopLosesToQueuedJoin(t *testing.T) {
	r := startRoom(t, testUser("owner"), nil, passingJudge(0))
	id, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	// A timer firing between the join being queued and processed ends
	// up here: the idle stop arrives while the room has a member.
	require.NoError(t, r.mailbox.Send(stopIdle{}))
	clientSend(t, r, id, ClientSendChatMessage, SendChatMessagePayload{Content: "still here"})
	msg := expectChat(t, c1, ChatUserChat)
	assert.Contains(t, string(msg.C), "still here")

	// Once empty the idle stop takes effect.
	require.NoError(t, r.mailbox.Send(RemoveConnection{ConnID: id}))
	require.NoError(t, r.mailbox.Send(stopIdle{}))
	select {
	case <-r.mailbox.done:
	case <-time.After(time.Second):
		t.Fatal("empty room ignored idle stop")
	}
}

// =============================================================================
// Rounds and editor state
// =============================================================================

func TestRoom_BeginRoundBroadcastsProblemsOnce(t *testing.T) {
	r := startRoom(t, testUser("owner"), []domain.Problem{sumProblem()}, passingJudge(0))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientBeginRound, nil)
	expectChat(t, c1, ChatRoundBegin)
	problemsEnv := expectFrame(t, c1, ServerSetProblems)
	var problems []domain.PublicProblem
	require.NoError(t, json.Unmarshal(problemsEnv.C, &problems))
	require.Len(t, problems, 1)
	assert.Len(t, problems[0].DefaultTestCases, 3)

	// Second BeginRound is a silent drop.
	clientSend(t, r, id1, ClientBeginRound, nil)
	expectNoFrame(t, c1)
}

func TestRoom_LateJoinerGetsProblemsDuringRound(t *testing.T) {
	r := startRoom(t, testUser("owner"), []domain.Problem{sumProblem()}, passingJudge(0))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}
	clientSend(t, r, id1, ClientBeginRound, nil)
	recvFrame(t, c1) // RoundBegin chat
	recvFrame(t, c1) // SetProblems

	_, c2 := join(t, r, testUser("U2"))
	expectFrame(t, c2, ServerChatHistory)
	expectFrame(t, c2, ServerSetRoomConfig)
	expectChat(t, c2, ChatConnection)
	expectFrame(t, c2, ServerSetUsers)
	expectFrame(t, c2, ServerSetProblems)
}

func TestRoom_SetEditorContentLastWriteWins(t *testing.T) {
	judged := make(chan string, 1)
	judgeFn := func(_ context.Context, _, code string, testCases []domain.TestCase) (*judge.Results, error) {
		judged <- code
		return &judge.Results{OkayTests: testCases}, nil
	}

	r := startRoom(t, testUser("owner"), nil, judgeFn)
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientSetEditorContent, SetEditorContentPayload{Content: "draft"})
	clientSend(t, r, id1, ClientSetEditorContent, SetEditorContentPayload{Content: "final"})
	clientSend(t, r, id1, ClientTestCode, TestCodePayload{Language: "python"})

	expectFrame(t, c1, ServerSetTestResponse)
	assert.Equal(t, "final", <-judged)
}

// =============================================================================
// TestCode
// =============================================================================

func TestRoom_TestCodeSuccess(t *testing.T) {
	r := startRoom(t, testUser("owner"), nil, passingJudge(7))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	cases := []domain.TestCase{
		{Input: "[1,2]", Output: "3"},
		{Input: "[5,7]", Output: "12"},
	}
	clientSend(t, r, id1, ClientSetEditorContent, SetEditorContentPayload{Content: "def solve(a,b):\n    return a+b\n"})
	clientSend(t, r, id1, ClientTestCode, TestCodePayload{TestCases: cases, Language: "python"})

	env := expectFrame(t, c1, ServerSetTestResponse)
	var response TestResponse
	require.NoError(t, json.Unmarshal(env.C, &response))
	require.Equal(t, TestResponseRan, response.T)

	var ran struct {
		FailedTests []judge.FailedTestCase `json:"failedTests"`
		OkayTests   []domain.TestCase      `json:"okayTests"`
	}
	require.NoError(t, json.Unmarshal(response.C, &ran))
	assert.Empty(t, ran.FailedTests)
	assert.Equal(t, cases, ran.OkayTests)

	// No chat traffic for plain test runs.
	expectNoFrame(t, c1)
}

func TestRoom_TestCodeJudgeErrorGoesToSubmitterOnly(t *testing.T) {
	judgeFn := func(_ context.Context, _, _ string, _ []domain.TestCase) (*judge.Results, error) {
		return nil, errors.New("Error running code:\nboom")
	}
	r := startRoom(t, testUser("owner"), nil, judgeFn)
	id1, c1 := join(t, r, testUser("U1"))
	_, c2 := join(t, r, testUser("U2"))
	for i := 0; i < 6; i++ {
		recvFrame(t, c1)
	}
	for i := 0; i < 4; i++ {
		recvFrame(t, c2)
	}

	clientSend(t, r, id1, ClientTestCode, TestCodePayload{Language: "python"})

	env := expectFrame(t, c1, ServerSetTestResponse)
	var response TestResponse
	require.NoError(t, json.Unmarshal(env.C, &response))
	assert.Equal(t, TestResponseError, response.T)
	assert.Contains(t, string(response.C), "boom")

	expectNoFrame(t, c2)
}

func TestRoom_TestCodeRejectsUnknownLanguage(t *testing.T) {
	r := startRoom(t, testUser("owner"), nil, passingJudge(0))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientTestCode, TestCodePayload{Language: "brainfuck"})
	expectNoFrame(t, c1)
}

// =============================================================================
// SubmitCode
// =============================================================================

func TestRoom_SubmitCodeFullPassTriggersFinish(t *testing.T) {
	r := startRoom(t, testUser("owner"), []domain.Problem{sumProblem()}, passingJudge(42))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientSetEditorContent, SetEditorContentPayload{Content: "def solve(a,b):\n    return a+b\n"})
	clientSend(t, r, id1, ClientSubmitCode, SubmitCodePayload{ProblemIndex: 0, Language: "python"})

	expectChat(t, c1, ChatUserSubmitted)

	env := expectFrame(t, c1, ServerSetTestResponse)
	var response TestResponse
	require.NoError(t, json.Unmarshal(env.C, &response))
	require.Equal(t, TestResponseAllPassed, response.T)
	assert.JSONEq(t, `{"runtime":42}`, string(response.C))

	completion := expectChat(t, c1, ChatUserProblemCompletion)
	assert.Contains(t, string(completion.C), `"problemIndex":0`)

	finished := expectChat(t, c1, ChatUserFinished)
	assert.Contains(t, string(finished.C), `"place":1`)
}

func TestRoom_ResubmitAfterFinishIsIdempotent(t *testing.T) {
	r := startRoom(t, testUser("owner"), []domain.Problem{sumProblem()}, passingJudge(1))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientSetEditorContent, SetEditorContentPayload{Content: "code"})
	clientSend(t, r, id1, ClientSubmitCode, SubmitCodePayload{ProblemIndex: 0, Language: "python"})
	for i := 0; i < 4; i++ {
		recvFrame(t, c1) // UserSubmitted, AllTestsPassed, completion, finished
	}

	clientSend(t, r, id1, ClientSubmitCode, SubmitCodePayload{ProblemIndex: 0, Language: "python"})
	expectChat(t, c1, ChatUserSubmitted)
	expectFrame(t, c1, ServerSetTestResponse)
	expectChat(t, c1, ChatUserProblemCompletion)
	// No second UserFinished.
	expectNoFrame(t, c1)
}

func TestRoom_SubmitCodeReportsOnlyFirstFailure(t *testing.T) {
	judgeFn := func(_ context.Context, _, _ string, _ []domain.TestCase) (*judge.Results, error) {
		return &judge.Results{
			FailedTests: []judge.FailedTestCase{
				{Input: "[1,2]", Output: "4", Expected: "3"},
				{Input: "[5,7]", Output: "13", Expected: "12"},
			},
			OkayTests: []domain.TestCase{{Input: "[0,0]", Output: "0"}},
		}, nil
	}
	r := startRoom(t, testUser("owner"), []domain.Problem{sumProblem()}, judgeFn)
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientSetEditorContent, SetEditorContentPayload{Content: "code"})
	clientSend(t, r, id1, ClientSubmitCode, SubmitCodePayload{ProblemIndex: 0, Language: "python"})

	expectChat(t, c1, ChatUserSubmitted)
	env := expectFrame(t, c1, ServerSetTestResponse)
	var response TestResponse
	require.NoError(t, json.Unmarshal(env.C, &response))
	require.Equal(t, TestResponseRan, response.T)

	var ran struct {
		FailedTests []judge.FailedTestCase `json:"failedTests"`
		OkayTests   []domain.TestCase      `json:"okayTests"`
	}
	require.NoError(t, json.Unmarshal(response.C, &ran))
	require.Len(t, ran.FailedTests, 1)
	assert.Equal(t, "4", ran.FailedTests[0].Output)
	assert.Empty(t, ran.OkayTests)
}

func TestRoom_SubmitCodeBadIndexIsDropped(t *testing.T) {
	r := startRoom(t, testUser("owner"), []domain.Problem{sumProblem()}, passingJudge(0))
	id1, c1 := join(t, r, testUser("U1"))
	for i := 0; i < 4; i++ {
		recvFrame(t, c1)
	}

	clientSend(t, r, id1, ClientSubmitCode, SubmitCodePayload{ProblemIndex: 5, Language: "python"})
	expectNoFrame(t, c1)
}
