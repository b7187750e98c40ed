package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"classroom-poll-service/internal/domain"
	"classroom-poll-service/internal/metrics"
)

const (
	defaultChatLimit = 200
	anonymousUser    = "Anonymous"
)

// Stopper cancels a scheduled poll timeout.
type Stopper interface {
	Stop() bool
}

// Classroom owns all mutable classroom state. Every mutation and the broadcasts it
// triggers run under one mutex, so a peer that receives an event and then asks for
// a snapshot always sees the mutation.
type Classroom struct {
	mu       sync.Mutex
	registry *Registry
	polls    *PollBook
	history  *History
	out      dispatcher
	presence Presence
	log      *slog.Logger

	now           func() time.Time
	afterFunc     func(time.Duration, func()) Stopper
	serverTimeout bool
	grace         time.Duration
	timers        map[string]Stopper

	chat      []domain.ChatMessage
	chatLimit int
}

// Option configures a Classroom.
type Option func(*Classroom)

func WithLogger(l *slog.Logger) Option {
	return func(c *Classroom) { c.log = l }
}

func WithPresence(p Presence) Option {
	return func(c *Classroom) {
		if p != nil {
			c.presence = p
		}
	}
}

// WithClock is used by tests for deterministic poll ids and timers.
func WithClock(now func() time.Time, afterFunc func(time.Duration, func()) Stopper) Option {
	return func(c *Classroom) {
		if now != nil {
			c.now = now
		}
		if afterFunc != nil {
			c.afterFunc = afterFunc
		}
	}
}

// WithServerTimeout retires polls on the server after timeLimit+grace, mirroring
// the client-side countdown.
func WithServerTimeout(grace time.Duration) Option {
	return func(c *Classroom) {
		c.serverTimeout = true
		c.grace = grace
	}
}

func WithChatLimit(n int) Option {
	return func(c *Classroom) {
		if n > 0 {
			c.chatLimit = n
		}
	}
}

func NewClassroom(history *History, out Broadcaster, opts ...Option) *Classroom {
	if out == nil {
		out = nopBroadcaster{}
	}
	registry := NewRegistry()
	c := &Classroom{
		registry:  registry,
		history:   history,
		out:       dispatcher{out: out, registry: registry},
		presence:  nopPresence{},
		log:       slog.Default(),
		now:       time.Now,
		timers:    make(map[string]Stopper),
		chatLimit: defaultChatLimit,
		afterFunc: func(d time.Duration, f func()) Stopper {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.polls = NewPollBook(c.now)
	return c
}

// LoadHistory restores persisted history. Never fails.
func (c *Classroom) LoadHistory(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Load(ctx)
}

// Join registers (or reconnects) a participant on connID, then replays history and
// active polls to that connection.
func (c *Classroom) Join(ctx context.Context, connID, sessionID, displayName, rawRole string) error {
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		c.log.Warn("invalid join", "session_id", sessionID, "name", displayName, "role", rawRole)
		return domain.ErrInvalidJoin
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, _ := c.registry.Get(sessionID)
	rejoined, err := c.registry.Join(sessionID, displayName, role, connID)
	if err != nil {
		c.log.Warn("invalid join", "session_id", sessionID, "name", displayName, "role", rawRole)
		return err
	}
	if rejoined {
		c.log.Info("session rejoined, connection updated", "session_id", sessionID, "conn_id", connID)
	}
	c.log.Info("participant joined", "role", role, "name", displayName, "session_id", sessionID)
	c.observeRoster()
	if p, ok := c.registry.Get(sessionID); ok {
		if err := c.presence.Mark(ctx, p); err != nil {
			c.log.Debug("presence mark failed", "session_id", sessionID, "error", err)
		}
	}

	// the roster also changes when a student rejoins as teacher
	switch {
	case role == domain.RoleStudent, rejoined && prev.Role == domain.RoleStudent:
		c.out.roster()
	case role == domain.RoleTeacher:
		c.out.to(connID, domain.EventUserList, c.registry.Students())
	}
	c.out.to(connID, domain.EventPollHistory, c.history.All())
	for _, poll := range c.polls.Active() {
		c.out.to(connID, domain.EventPollStarted, poll)
	}
	return nil
}

// Disconnect drops every participant attached to connID.
func (c *Classroom) Disconnect(ctx context.Context, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	studentLeft := false
	for _, sessionID := range c.registry.ByConn(connID) {
		p, ok := c.remove(ctx, sessionID)
		if ok && p.Role == domain.RoleStudent {
			studentLeft = true
		}
	}
	if studentLeft {
		c.out.roster()
	}
}

// Kick removes sessionID and tells its connection. Unknown ids are a no-op.
func (c *Classroom) Kick(ctx context.Context, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.remove(ctx, sessionID)
	if !ok {
		c.log.Debug("kick for unknown session", "session_id", sessionID)
		return false
	}
	c.log.Info("participant kicked", "session_id", sessionID, "name", p.DisplayName)
	c.out.to(p.ConnID, domain.EventKicked, domain.KickedEvent{SessionID: sessionID})
	if p.Role == domain.RoleStudent {
		c.out.roster()
	}
	return true
}

func (c *Classroom) remove(ctx context.Context, sessionID string) (domain.Participant, bool) {
	p, ok := c.registry.Remove(sessionID)
	if !ok {
		return p, false
	}
	c.observeRoster()
	if err := c.presence.Clear(ctx, sessionID); err != nil {
		c.log.Debug("presence clear failed", "session_id", sessionID, "error", err)
	}
	c.log.Info("participant left", "role", p.Role, "name", p.DisplayName, "session_id", sessionID)
	return p, true
}

// StartPoll opens a poll and announces it to everyone.
func (c *Classroom) StartPoll(_ context.Context, draft domain.PollDraft) (domain.Poll, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	poll, err := c.polls.Start(draft)
	if err != nil {
		c.log.Warn("poll rejected", "poll_id", draft.ID, "error", err)
		return domain.Poll{}, err
	}
	metrics.PollsStarted.Inc()
	c.log.Info("poll started", "poll_id", poll.ID, "question", poll.Question, "options", len(poll.Options), "time_limit", poll.TimeLimit)

	snapshot := poll.Clone()
	c.out.all(domain.EventPollStarted, snapshot)

	if c.serverTimeout {
		id := poll.ID
		wait := time.Duration(poll.TimeLimit)*time.Second + c.grace
		c.timers[id] = c.afterFunc(wait, func() { c.expire(id) })
	}
	return snapshot, nil
}

// SubmitAnswer counts a vote from the participant (displayName, sessionID).
func (c *Classroom) SubmitAnswer(ctx context.Context, pollID, option, voterSessionID, voterDisplayName string) error {
	if voterSessionID == "" || voterDisplayName == "" {
		return domain.ErrParticipantNotFound
	}
	return c.SubmitAnswerAs(ctx, pollID, option, domain.VoterID(voterDisplayName, voterSessionID))
}

// SubmitAnswerAs counts a vote under a pre-composed voter id. Unknown polls and
// repeat voters are no-ops reported through the returned error.
func (c *Classroom) SubmitAnswerAs(_ context.Context, pollID, option, voterID string) error {
	if strings.TrimSpace(voterID) == "" {
		return domain.ErrParticipantNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.polls.Submit(pollID, option, voterID); err != nil {
		metrics.AnswersRejected.WithLabelValues(rejectReason(err)).Inc()
		c.log.Debug("answer ignored", "poll_id", pollID, "voter", voterID, "answer", option, "error", err)
		return err
	}
	metrics.AnswersAccepted.Inc()
	c.log.Info("answer submitted", "poll_id", pollID, "voter", voterID, "answer", option)
	c.out.all(domain.EventAnswer, domain.AnswerEvent{PollID: pollID, Answer: option, StudentName: voterID})
	return nil
}

// EndPoll retires a poll. Only the first call for an id has any effect.
func (c *Classroom) EndPoll(ctx context.Context, pollID string) bool {
	return c.endPoll(ctx, pollID, "explicit")
}

func (c *Classroom) expire(pollID string) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic in poll timeout", "poll_id", pollID, "panic", r)
		}
	}()
	if c.endPoll(context.Background(), pollID, "timeout") {
		c.log.Info("poll timed out on server", "poll_id", pollID)
	}
}

func (c *Classroom) endPoll(ctx context.Context, pollID, trigger string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	poll, ok := c.polls.Retire(pollID)
	if !ok {
		c.log.Debug("end for unknown poll", "poll_id", pollID, "trigger", trigger)
		return false
	}
	if t, ok := c.timers[pollID]; ok {
		t.Stop()
		delete(c.timers, pollID)
	}

	if err := c.history.Append(ctx, *poll); err != nil {
		metrics.HistoryPersistFailures.Inc()
	}
	metrics.PollsRetired.WithLabelValues(trigger).Inc()
	c.log.Info("poll ended", "poll_id", pollID, "trigger", trigger, "votes", len(poll.AnsweredBy))

	c.out.all(domain.EventPollEnded, domain.PollEndedEvent{PollID: pollID})
	c.out.all(domain.EventPollHistory, c.history.All())
	return true
}

// SendHistory replays the history to one connection.
func (c *Classroom) SendHistory(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.to(connID, domain.EventPollHistory, c.history.All())
}

// PostChat relays a chat line to everyone.
func (c *Classroom) PostChat(_ context.Context, user, message string) (domain.ChatMessage, error) {
	if strings.TrimSpace(message) == "" {
		c.log.Warn("invalid chat message", "user", user)
		return domain.ChatMessage{}, domain.ErrInvalidChat
	}
	if strings.TrimSpace(user) == "" {
		user = anonymousUser
	}
	msg := domain.ChatMessage{User: user, Message: message}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.chat = append(c.chat, msg)
	if over := len(c.chat) - c.chatLimit; over > 0 {
		c.chat = append([]domain.ChatMessage{}, c.chat[over:]...)
	}
	c.out.all(domain.EventChatMessage, msg)
	return msg, nil
}

// History returns retired polls, oldest first.
func (c *Classroom) History() []domain.Poll {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.All()
}

// Roster returns the students in join order.
func (c *Classroom) Roster() []domain.StudentSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Students()
}

// ActivePolls returns copies of the polls still accepting votes.
func (c *Classroom) ActivePolls() []domain.Poll {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls.Active()
}

// ActivePoll returns a copy of one active poll.
func (c *Classroom) ActivePoll(pollID string) (domain.Poll, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	poll, ok := c.polls.Get(pollID)
	if !ok {
		return domain.Poll{}, false
	}
	return poll.Clone(), true
}

// Participant looks up a registered session.
func (c *Classroom) Participant(sessionID string) (domain.Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Get(sessionID)
}

// Chat returns the retained chat log.
func (c *Classroom) Chat() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.ChatMessage{}, c.chat...)
}

func (c *Classroom) observeRoster() {
	metrics.Participants.WithLabelValues(string(domain.RoleStudent)).Set(float64(c.registry.Count(domain.RoleStudent)))
	metrics.Participants.WithLabelValues(string(domain.RoleTeacher)).Set(float64(c.registry.Count(domain.RoleTeacher)))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrPollNotFound):
		return "unknown_poll"
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return "duplicate"
	case errors.Is(err, domain.ErrUnknownOption):
		return "unknown_option"
	}
	return "other"
}
