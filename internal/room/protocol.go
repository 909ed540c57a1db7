package room

import (
	"encoding/json"
	"fmt"

	"github.com/radixapp/radix/internal/domain"
	"github.com/radixapp/radix/internal/judge"
)

// Everything on the wire is a tagged union: {"t": TAG, "c": PAYLOAD}.
// Unit variants omit "c" entirely.

// Client -> server tags
const (
	ClientPing             = "Ping"
	ClientSendChatMessage  = "SendChatMessage"
	ClientBeginRound       = "BeginRound"
	ClientSetEditorContent = "SetEditorContent"
	ClientTestCode         = "TestCode"
	ClientSubmitCode       = "SubmitCode"
)

// Server -> client tags
const (
	ServerError           = "Error"
	ServerChatHistory     = "ChatHistory"
	ServerChatMessage     = "ChatMessage"
	ServerSetUsers        = "SetUsers"
	ServerSetRoomConfig   = "SetRoomConfig"
	ServerSetProblems     = "SetProblems"
	ServerSetTestResponse = "SetTestResponse"
)

// Envelope is the wire shape of every command in both directions.
type Envelope struct {
	T string          `json:"t"`
	C json.RawMessage `json:"c,omitempty"`
}

var clientTags = map[string]bool{
	ClientPing:             true,
	ClientSendChatMessage:  true,
	ClientBeginRound:       true,
	ClientSetEditorContent: true,
	ClientTestCode:         true,
	ClientSubmitCode:       true,
}

// DecodeClientCommand parses a client text frame. Unknown tags are a
// parse error so the connection can drop the frame.
func DecodeClientCommand(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode client command: %w", err)
	}
	if !clientTags[env.T] {
		return Envelope{}, fmt.Errorf("unknown client command tag %q", env.T)
	}
	return env, nil
}

// ============================================================================
// Client -> Server Payloads
// ============================================================================

// SendChatMessagePayload carries one chat line.
type SendChatMessagePayload struct {
	Content string `json:"content"`
}

// SetEditorContentPayload replaces the sender's editor buffer.
type SetEditorContentPayload struct {
	Content string `json:"content"`
}

// TestCodePayload runs the sender's code against ad-hoc test cases.
type TestCodePayload struct {
	TestCases []domain.TestCase `json:"testCases"`
	Language  string            `json:"language"`
}

// SubmitCodePayload submits the sender's code against a problem's full
// test case list.
type SubmitCodePayload struct {
	ProblemIndex int    `json:"problemIndex"`
	Language     string `json:"language"`
}

// ============================================================================
// Chat messages
// ============================================================================

// Chat message variant tags
const (
	ChatUserChat              = "UserChat"
	ChatConnection            = "Connection"
	ChatDisconnection         = "Disconnection"
	ChatRoundBegin            = "RoundBegin"
	ChatUserSubmitted         = "UserSubmitted"
	ChatUserProblemCompletion = "UserProblemCompletion"
	ChatUserFinished          = "UserFinished"
	ChatRoundEnd              = "RoundEnd"
	ChatBad                   = "Bad"
)

// ChatMessage is one entry of a room's chat history, stored and
// shipped in wire form.
type ChatMessage struct {
	T string          `json:"t"`
	C json.RawMessage `json:"c,omitempty"`
}

type userChatPayload struct {
	Author  domain.PublicUser `json:"author"`
	Content string            `json:"content"`
}

type usernamePayload struct {
	Username string `json:"username"`
}

type problemCompletionPayload struct {
	Username     string `json:"username"`
	ProblemIndex int    `json:"problemIndex"`
}

type userFinishedPayload struct {
	Username string `json:"username"`
	Place    int    `json:"place"`
}

func chatMessage(tag string, payload any) ChatMessage {
	if payload == nil {
		return ChatMessage{T: tag}
	}
	c, err := json.Marshal(payload)
	if err != nil {
		// Payload types above are all marshallable; this is unreachable
		// short of a programming error.
		return ChatMessage{T: ChatBad}
	}
	return ChatMessage{T: tag, C: c}
}

func NewUserChatMessage(author domain.PublicUser, content string) ChatMessage {
	return chatMessage(ChatUserChat, userChatPayload{Author: author, Content: content})
}

func NewConnectionMessage(username string) ChatMessage {
	return chatMessage(ChatConnection, usernamePayload{Username: username})
}

func NewDisconnectionMessage(username string) ChatMessage {
	return chatMessage(ChatDisconnection, usernamePayload{Username: username})
}

func NewRoundBeginMessage() ChatMessage {
	return chatMessage(ChatRoundBegin, nil)
}

func NewRoundEndMessage() ChatMessage {
	return chatMessage(ChatRoundEnd, nil)
}

func NewUserSubmittedMessage(username string) ChatMessage {
	return chatMessage(ChatUserSubmitted, usernamePayload{Username: username})
}

func NewUserProblemCompletionMessage(username string, problemIndex int) ChatMessage {
	return chatMessage(ChatUserProblemCompletion, problemCompletionPayload{
		Username:     username,
		ProblemIndex: problemIndex,
	})
}

func NewUserFinishedMessage(username string, place int) ChatMessage {
	return chatMessage(ChatUserFinished, userFinishedPayload{Username: username, Place: place})
}

// ============================================================================
// Server -> Client Payloads
// ============================================================================

// RoomConfigPayload mirrors domain.RoomConfig with the owner projected.
type RoomConfigPayload struct {
	Name   string            `json:"name"`
	Public bool              `json:"public"`
	Owner  domain.PublicUser `json:"owner"`
}

// Test response variant tags
const (
	TestResponseError     = "Error"
	TestResponseRan       = "Ran"
	TestResponseAllPassed = "AllTestsPassed"
)

// TestResponse is the tagged outcome of a TestCode or SubmitCode run.
type TestResponse struct {
	T string          `json:"t"`
	C json.RawMessage `json:"c,omitempty"`
}

type testErrorPayload struct {
	Message string `json:"message"`
}

type testRanPayload struct {
	FailedTests []judge.FailedTestCase `json:"failedTests"`
	OkayTests   []domain.TestCase      `json:"okayTests"`
}

type allPassedPayload struct {
	Runtime int `json:"runtime"`
}

func testResponse(tag string, payload any) TestResponse {
	c, _ := json.Marshal(payload)
	return TestResponse{T: tag, C: c}
}

func NewTestResponseError(message string) TestResponse {
	return testResponse(TestResponseError, testErrorPayload{Message: message})
}

func NewTestResponseRan(failed []judge.FailedTestCase, okay []domain.TestCase) TestResponse {
	if failed == nil {
		failed = []judge.FailedTestCase{}
	}
	if okay == nil {
		okay = []domain.TestCase{}
	}
	return testResponse(TestResponseRan, testRanPayload{FailedTests: failed, OkayTests: okay})
}

func NewTestResponseAllPassed(runtime int) TestResponse {
	return testResponse(TestResponseAllPassed, allPassedPayload{Runtime: runtime})
}

// ============================================================================
// Server command encoding
// ============================================================================

func encodeServer(tag string, payload any) ([]byte, error) {
	env := Envelope{T: tag}
	if payload != nil {
		c, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", tag, err)
		}
		env.C = c
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return data, nil
}

func EncodeError(message string) ([]byte, error) {
	return encodeServer(ServerError, message)
}

func EncodeChatHistory(messages []ChatMessage) ([]byte, error) {
	if messages == nil {
		messages = []ChatMessage{}
	}
	return encodeServer(ServerChatHistory, messages)
}

func EncodeChatMessage(message ChatMessage) ([]byte, error) {
	return encodeServer(ServerChatMessage, message)
}

func EncodeSetUsers(users []domain.PublicUser) ([]byte, error) {
	if users == nil {
		users = []domain.PublicUser{}
	}
	return encodeServer(ServerSetUsers, users)
}

func EncodeSetRoomConfig(config RoomConfigPayload) ([]byte, error) {
	return encodeServer(ServerSetRoomConfig, config)
}

// EncodeSetProblems encodes the problem list; nil means "no round yet"
// and goes out as an explicit null.
func EncodeSetProblems(problems []domain.PublicProblem) ([]byte, error) {
	if problems == nil {
		return encodeServer(ServerSetProblems, json.RawMessage("null"))
	}
	return encodeServer(ServerSetProblems, problems)
}

func EncodeSetTestResponse(response TestResponse) ([]byte, error) {
	return encodeServer(ServerSetTestResponse, response)
}
