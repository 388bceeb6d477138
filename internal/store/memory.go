package store

import (
	"sort"
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/domain"
)

// MemoryStore is the in-memory Store implementation. State does not
// survive restarts; that is an accepted property of the design.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	processing    *processingSet
}

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*domain.Conversation),
		processing:    newProcessingSet(),
	}
}

func (s *MemoryStore) getOrCreateLocked(senderID string) *domain.Conversation {
	if c, ok := s.conversations[senderID]; ok {
		return c
	}
	c := &domain.Conversation{
		SenderID:  senderID,
		Phase:     domain.PhaseNew,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.conversations[senderID] = c
	return c
}

func snapshot(c *domain.Conversation) domain.Conversation {
	out := *c
	out.Messages = append([]domain.Message(nil), c.Messages...)
	return out
}

func (s *MemoryStore) GetOrCreate(senderID string) domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot(s.getOrCreateLocked(senderID))
}

func (s *MemoryStore) Get(senderID string) (domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[senderID]
	if !ok {
		return domain.Conversation{}, false
	}
	return snapshot(c), true
}

func (s *MemoryStore) AppendTurn(senderID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(senderID)
	c.Messages = append(c.Messages, domain.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	c.UpdatedAt = time.Now()
}

func (s *MemoryStore) TrySetProcessing(senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(senderID)
	return s.processing.trySet(senderID)
}

func (s *MemoryStore) ClearProcessing(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing.clear(senderID)
}

func (s *MemoryStore) SetPhase(senderID string, phase domain.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(senderID)
	c.Phase = phase
	c.UpdatedAt = time.Now()
}

func (s *MemoryStore) SetName(senderID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(senderID)
	c.Name = name
	c.UpdatedAt = time.Now()
}

func (s *MemoryStore) SetThreadRef(senderID, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.getOrCreateLocked(senderID)
	c.ThreadRef = ref
	c.UpdatedAt = time.Now()
}

func (s *MemoryStore) Reset(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[senderID]
	if !ok {
		return
	}
	name := c.Name
	s.conversations[senderID] = &domain.Conversation{
		SenderID:  senderID,
		Name:      name,
		Phase:     domain.PhaseNew,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func (s *MemoryStore) History(senderID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[senderID]
	if !ok {
		return nil
	}
	return append([]domain.Message(nil), c.Messages...)
}

func (s *MemoryStore) List() []domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, snapshot(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}
