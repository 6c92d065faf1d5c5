package voice

import "github.com/seu-repo/mirror-voice/internal/domain"

// DefaultHistoryLimit is the number of non-system turns kept.
const DefaultHistoryLimit = 10

// Memory is the bounded conversation log fed to the function-calling
// resolver. The system turn is kept apart, never counted against the limit
// and always returned first. Memory is not safe for concurrent use; the
// pipeline guards it.
type Memory struct {
	system *domain.ConversationTurn
	turns  []domain.ConversationTurn
	limit  int
}

// NewMemory creates a memory holding at most limit non-system turns. An
// empty systemPrompt omits the system turn.
func NewMemory(systemPrompt string, limit int) *Memory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	m := &Memory{limit: limit}
	if systemPrompt != "" {
		m.system = &domain.ConversationTurn{Role: domain.RoleSystem, Content: systemPrompt}
	}
	return m
}

// Append adds a turn and drops the oldest non-system turns beyond the limit.
// A system turn replaces the current one.
func (m *Memory) Append(turn domain.ConversationTurn) {
	if turn.Role == domain.RoleSystem {
		m.system = &turn
		return
	}
	m.turns = append(m.turns, turn)
	if over := len(m.turns) - m.limit; over > 0 {
		m.turns = append(m.turns[:0], m.turns[over:]...)
	}
}

// Snapshot returns a copy of the log, system turn first.
func (m *Memory) Snapshot() []domain.ConversationTurn {
	out := make([]domain.ConversationTurn, 0, len(m.turns)+1)
	if m.system != nil {
		out = append(out, *m.system)
	}
	return append(out, m.turns...)
}

// Len counts the non-system turns.
func (m *Memory) Len() int {
	return len(m.turns)
}

func (m *Memory) Limit() int {
	return m.limit
}
