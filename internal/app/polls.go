package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"classroom-poll-service/internal/domain"
)

// MaxTimeLimit bounds a poll's countdown, in seconds.
const MaxTimeLimit = 24 * 60 * 60

// PollBook holds the active polls keyed by id.
// It is not safe for concurrent use; Classroom serializes access.
type PollBook struct {
	now    func() time.Time
	active map[string]*domain.Poll
	order  []string
}

func NewPollBook(now func() time.Time) *PollBook {
	if now == nil {
		now = time.Now
	}
	return &PollBook{now: now, active: make(map[string]*domain.Poll)}
}

// Start validates a draft and opens it. Blank options are dropped and repeated
// options collapse to their first occurrence.
func (b *PollBook) Start(draft domain.PollDraft) (*domain.Poll, error) {
	question := strings.TrimSpace(draft.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidPoll)
	}
	options := cleanOptions(draft.Options)
	if len(options) < 2 {
		return nil, fmt.Errorf("%w: at least two options are required", domain.ErrInvalidPoll)
	}
	if draft.TimeLimit <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", domain.ErrInvalidPoll)
	}
	if draft.TimeLimit > MaxTimeLimit {
		return nil, fmt.Errorf("%w: time limit exceeds %d seconds", domain.ErrInvalidPoll, MaxTimeLimit)
	}

	id := strings.TrimSpace(draft.ID)
	if id == "" {
		id = b.nextID()
	} else if _, ok := b.active[id]; ok {
		return nil, domain.ErrDuplicatePoll
	}

	poll := &domain.Poll{
		ID:        id,
		Question:  question,
		Options:   options,
		TimeLimit: draft.TimeLimit,
	}
	poll.Normalize()
	b.active[id] = poll
	b.order = append(b.order, id)
	return poll, nil
}

// Submit records a vote. The poll must be active, the voter new, and the option one
// of the poll's choices.
func (b *PollBook) Submit(pollID, option, voterID string) (*domain.Poll, error) {
	poll, ok := b.active[pollID]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	if poll.HasAnswered(voterID) {
		return nil, domain.ErrAlreadyAnswered
	}
	if !poll.HasOption(option) {
		return nil, domain.ErrUnknownOption
	}

	poll.Answers[option]++
	poll.AnsweredBy = append(poll.AnsweredBy, voterID)
	poll.StudentAnswers[voterID] = option
	return poll, nil
}

// Retire removes the poll from the active set. The second call for the same id
// reports false.
func (b *PollBook) Retire(pollID string) (*domain.Poll, bool) {
	poll, ok := b.active[pollID]
	if !ok {
		return nil, false
	}
	delete(b.active, pollID)
	for i, id := range b.order {
		if id == pollID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return poll, true
}

// Get returns the active poll with id.
func (b *PollBook) Get(pollID string) (*domain.Poll, bool) {
	poll, ok := b.active[pollID]
	return poll, ok
}

// Active returns copies of the active polls in start order.
func (b *PollBook) Active() []domain.Poll {
	out := make([]domain.Poll, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.active[id].Clone())
	}
	return out
}

// nextID derives an id from the clock, bumping it while it collides.
func (b *PollBook) nextID() string {
	ms := b.now().UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if _, taken := b.active[id]; !taken {
			return id
		}
		ms++
	}
}

func cleanOptions(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, o := range raw {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}
