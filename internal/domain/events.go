package domain

// Event names shared by the inbound and outbound websocket protocol.
const (
	EventJoin           = "join"
	EventPollStarted    = "pollStarted"
	EventAnswer         = "answerSubmitted"
	EventPollEnded      = "pollEnded"
	EventGetPollHistory = "getPollHistory"
	EventPollHistory    = "pollHistory"
	EventKickStudent    = "kickStudent"
	EventKicked         = "kicked"
	EventUserList       = "userList"
	EventChatMessage    = "chatMessage"
	EventError          = "error"
)

// Event is an outbound message before it is encoded for the wire.
type Event struct {
	Type    string
	Payload any
}

// AnswerEvent is the tally delta sent after an accepted vote.
type AnswerEvent struct {
	PollID      string `json:"pollId"`
	Answer      string `json:"answer"`
	StudentName string `json:"studentName"`
}

// PollEndedEvent announces a retirement.
type PollEndedEvent struct {
	PollID string `json:"pollId"`
}

// KickedEvent is sent to the connection of a removed student.
type KickedEvent struct {
	SessionID string `json:"sessionId"`
}

// ErrorEvent is sent back to a requester whose message was rejected.
type ErrorEvent struct {
	Message string `json:"message"`
}
