package domain

import "strings"

// Role distinguishes the poll owner from the people answering.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole maps the wire value to a Role.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// Participant is a joined browser tab. ConnID is the live transport handle and is
// replaced when the same SessionID rejoins.
type Participant struct {
	SessionID   string
	DisplayName string
	Role        Role
	ConnID      string
}

// StudentSummary is the roster view of a student sent to teachers.
type StudentSummary struct {
	Name      string `json:"name"`
	SessionID string `json:"sessionId"`
}

// VoterID builds the dedup key for a vote.
func VoterID(displayName, sessionID string) string {
	return displayName + ":" + sessionID
}

// PollDraft is what a teacher submits to open a poll.
type PollDraft struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"` // seconds
}

// Poll is an active or retired multiple-choice question with its tally.
// Answers only carries keys for options that received votes; use Tally for display.
type Poll struct {
	ID             string            `json:"id"`
	Question       string            `json:"question"`
	Options        []string          `json:"options"`
	TimeLimit      int               `json:"timeLimit"`
	Answers        map[string]int    `json:"answers"`
	AnsweredBy     []string          `json:"answeredBy"`
	StudentAnswers map[string]string `json:"studentAnswers"`
}

// OptionResult is one row of a poll's tally.
type OptionResult struct {
	Option  string  `json:"option"`
	Votes   int     `json:"votes"`
	Percent float64 `json:"percent"`
}

// HasOption reports whether option is one of the poll's choices.
func (p *Poll) HasOption(option string) bool {
	for _, o := range p.Options {
		if o == option {
			return true
		}
	}
	return false
}

// HasAnswered reports whether voterID already voted.
func (p *Poll) HasAnswered(voterID string) bool {
	_, ok := p.StudentAnswers[voterID]
	return ok
}

// Tally lists every option in display order, including options nobody picked.
// Percentages are relative to the number of voters and are 0 when nobody voted.
func (p *Poll) Tally() []OptionResult {
	total := len(p.AnsweredBy)
	out := make([]OptionResult, 0, len(p.Options))
	for _, o := range p.Options {
		votes := p.Answers[o]
		pct := 0.0
		if total > 0 {
			pct = float64(votes) * 100 / float64(total)
		}
		out = append(out, OptionResult{Option: o, Votes: votes, Percent: pct})
	}
	return out
}

// Percentages returns option -> percent of voters for every option.
func (p *Poll) Percentages() map[string]float64 {
	out := make(map[string]float64, len(p.Options))
	for _, r := range p.Tally() {
		out[r.Option] = r.Percent
	}
	return out
}

// Normalize replaces nil collections so an encoded poll always carries {} and [].
func (p *Poll) Normalize() {
	if p.Options == nil {
		p.Options = []string{}
	}
	if p.Answers == nil {
		p.Answers = map[string]int{}
	}
	if p.AnsweredBy == nil {
		p.AnsweredBy = []string{}
	}
	if p.StudentAnswers == nil {
		p.StudentAnswers = map[string]string{}
	}
}

// Clone deep-copies the poll so the copy can leave the classroom lock.
func (p *Poll) Clone() Poll {
	c := Poll{
		ID:             p.ID,
		Question:       p.Question,
		TimeLimit:      p.TimeLimit,
		Options:        append([]string{}, p.Options...),
		AnsweredBy:     append([]string{}, p.AnsweredBy...),
		Answers:        make(map[string]int, len(p.Answers)),
		StudentAnswers: make(map[string]string, len(p.StudentAnswers)),
	}
	for k, v := range p.Answers {
		c.Answers[k] = v
	}
	for k, v := range p.StudentAnswers {
		c.StudentAnswers[k] = v
	}
	return c
}

// ChatMessage is a relayed classroom chat line.
type ChatMessage struct {
	User    string `json:"user"`
	Message string `json:"message"`
}
