package store

import (
	"sync"
	"time"

	"github.com/voxgate/voxgate/internal/domain"
)

// SQLiteStore implements Store backed by SQLite. Conversation state and
// history persist across restarts; the in-flight processing flag is
// runtime-only and lives in memory.
type SQLiteStore struct {
	db *DB

	mu         sync.Mutex
	processing *processingSet
}

// NewSQLiteStore creates a conversation store using the given database.
func NewSQLiteStore(db *DB) *SQLiteStore {
	return &SQLiteStore{db: db, processing: newProcessingSet()}
}

func (s *SQLiteStore) GetOrCreate(senderID string) domain.Conversation {
	if c, ok := s.Get(senderID); ok {
		return c
	}

	now := time.Now()
	_, err := s.db.sql.Exec(
		`INSERT OR IGNORE INTO conversations (sender_id, created_at, updated_at) VALUES (?, ?, ?)`,
		senderID, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("sender", senderID).Msg("failed to create conversation")
	}

	c, _ := s.Get(senderID)
	return c
}

func (s *SQLiteStore) Get(senderID string) (domain.Conversation, bool) {
	var c domain.Conversation
	var phase, createdAt, updatedAt string

	err := s.db.sql.QueryRow(
		`SELECT sender_id, name, phase, thread_ref, created_at, updated_at
		 FROM conversations WHERE sender_id = ?`, senderID,
	).Scan(&c.SenderID, &c.Name, &phase, &c.ThreadRef, &createdAt, &updatedAt)
	if err != nil {
		return domain.Conversation{}, false
	}

	c.Phase = domain.Phase(phase)
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	c.Messages = s.History(senderID)
	return c, true
}

func (s *SQLiteStore) AppendTurn(senderID, role, content string) {
	s.GetOrCreate(senderID)

	now := time.Now()
	_, err := s.db.sql.Exec(
		`INSERT INTO messages (sender_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
		senderID, role, content, now.Format(time.RFC3339),
	)
	if err != nil {
		s.db.log.Error().Err(err).Str("sender", senderID).Msg("failed to append message")
		return
	}
	s.touch(senderID)
}

func (s *SQLiteStore) TrySetProcessing(senderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing.trySet(senderID)
}

func (s *SQLiteStore) ClearProcessing(senderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing.clear(senderID)
}

func (s *SQLiteStore) SetPhase(senderID string, phase domain.Phase) {
	s.GetOrCreate(senderID)
	s.exec(`UPDATE conversations SET phase = ? WHERE sender_id = ?`, string(phase), senderID)
	s.touch(senderID)
}

func (s *SQLiteStore) SetName(senderID, name string) {
	s.GetOrCreate(senderID)
	s.exec(`UPDATE conversations SET name = ? WHERE sender_id = ?`, name, senderID)
	s.touch(senderID)
}

func (s *SQLiteStore) SetThreadRef(senderID, ref string) {
	s.GetOrCreate(senderID)
	s.exec(`UPDATE conversations SET thread_ref = ? WHERE sender_id = ?`, ref, senderID)
	s.touch(senderID)
}

func (s *SQLiteStore) Reset(senderID string) {
	now := time.Now().Format(time.RFC3339)
	s.exec(`DELETE FROM messages WHERE sender_id = ?`, senderID)
	s.exec(
		`UPDATE conversations SET phase = ?, thread_ref = '', created_at = ?, updated_at = ? WHERE sender_id = ?`,
		string(domain.PhaseNew), now, now, senderID,
	)
}

func (s *SQLiteStore) History(senderID string) []domain.Message {
	rows, err := s.db.sql.Query(
		`SELECT role, content, timestamp FROM messages WHERE sender_id = ? ORDER BY id`, senderID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var ts string
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			continue
		}
		m.Timestamp, _ = time.Parse(time.RFC3339, ts)
		msgs = append(msgs, m)
	}
	return msgs
}

func (s *SQLiteStore) List() []domain.Conversation {
	rows, err := s.db.sql.Query(`SELECT sender_id FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}

	out := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *SQLiteStore) exec(query string, args ...any) {
	if _, err := s.db.sql.Exec(query, args...); err != nil {
		s.db.log.Error().Err(err).Str("query", query).Msg("store exec failed")
	}
}

func (s *SQLiteStore) touch(senderID string) {
	s.exec(`UPDATE conversations SET updated_at = ? WHERE sender_id = ?`,
		time.Now().Format(time.RFC3339), senderID)
}
