package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/types"
)

// ErrNotFound is returned for unknown or expired sessions
var ErrNotFound = errors.New("session not found")

// Store keeps sessions between requests. Implementations hand out copies, so
// a caller must Save after mutating.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// storedSession is the persisted form of a session. Questions are kept with
// explicit option labels because the backend form of an option is only its
// text, and relabelling on load could change the answer values.
type storedSession struct {
	*Session
	Questions []storedQuestion `json:"questions,omitempty"`
}

type storedQuestion struct {
	Question              string             `json:"question"`
	Kind                  types.QuestionKind `json:"question_type,omitempty"`
	Options               []storedOption     `json:"options,omitempty"`
	CorrectAnswer         *string            `json:"correct_answer,omitempty"`
	CodeTemplate          *string            `json:"code_template,omitempty"`
	ExpectedOutputExample *string            `json:"expected_output_example,omitempty"`
}

type storedOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

func storeQuestions(questions []types.TestQuestion) []storedQuestion {
	if questions == nil {
		return nil
	}
	out := make([]storedQuestion, len(questions))
	for i, q := range questions {
		sq := storedQuestion{
			Question:              q.Question,
			Kind:                  q.Kind,
			CorrectAnswer:         q.CorrectAnswer,
			CodeTemplate:          q.CodeTemplate,
			ExpectedOutputExample: q.ExpectedOutputExample,
		}
		for _, opt := range q.Options {
			sq.Options = append(sq.Options, storedOption(opt))
		}
		out[i] = sq
	}
	return out
}

func loadQuestions(stored []storedQuestion) []types.TestQuestion {
	if stored == nil {
		return nil
	}
	out := make([]types.TestQuestion, len(stored))
	for i, sq := range stored {
		q := types.TestQuestion{
			Question:              sq.Question,
			Kind:                  sq.Kind,
			CorrectAnswer:         sq.CorrectAnswer,
			CodeTemplate:          sq.CodeTemplate,
			ExpectedOutputExample: sq.ExpectedOutputExample,
		}
		for _, opt := range sq.Options {
			q.Options = append(q.Options, types.Option(opt))
		}
		out[i] = q
	}
	return out
}

func encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(storedSession{Session: s, Questions: storeQuestions(s.Questions)})
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*Session, error) {
	s := &Session{}
	stored := storedSession{Session: s}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	s.Questions = loadQuestions(stored.Questions)
	s.ensure()
	return s, nil
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps encoded sessions in process with an idle TTL
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
	logger  *apperrors.Logger
	now     func() time.Time
}

// NewMemoryStore creates a store and starts its janitor
func NewMemoryStore(ttl, cleanupInterval time.Duration, logger *apperrors.Logger) *MemoryStore {
	ms := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
		logger:  logger,
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		go ms.cleanup(cleanupInterval)
	}
	return ms
}

func (ms *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	ms.mu.Lock()
	entry, ok := ms.entries[id]
	if ok && ms.now().After(entry.expires) {
		delete(ms.entries, id)
		ok = false
	}
	ms.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decode(entry.data)
}

func (ms *MemoryStore) Save(_ context.Context, s *Session) error {
	s.UpdatedAt = ms.now().UTC()
	data, err := encode(s)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	ms.entries[s.ID] = memoryEntry{data: data, expires: ms.now().Add(ms.ttl)}
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) Delete(_ context.Context, id string) error {
	ms.mu.Lock()
	delete(ms.entries, id)
	ms.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions, expired ones included until swept
func (ms *MemoryStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.entries)
}

// Close stops the janitor
func (ms *MemoryStore) Close() error {
	ms.once.Do(func() { close(ms.done) })
	return nil
}

func (ms *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.sweep()
		case <-ms.done:
			return
		}
	}
}

func (ms *MemoryStore) sweep() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for id, entry := range ms.entries {
		if now.After(entry.expires) {
			delete(ms.entries, id)
			removed++
		}
	}
	if removed > 0 && ms.logger != nil {
		ms.logger.Debug("Expired sessions removed", "removed", removed, "remaining", len(ms.entries))
	}
}
