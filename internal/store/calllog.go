package store

import (
	"sync"
	"time"
)

// CallRecord is a completed voice call with its accumulated transcript.
type CallRecord struct {
	CallSid    string    `json:"callSid"`
	Caller     string    `json:"caller,omitempty"`
	Transcript string    `json:"transcript"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
}

// CallLog records finished voice calls for the dashboard.
type CallLog interface {
	SaveCall(rec CallRecord)
	ListCalls() []CallRecord
}

// MemoryCallLog is the in-memory CallLog implementation.
type MemoryCallLog struct {
	mu   sync.Mutex
	recs []CallRecord
}

func NewMemoryCallLog() *MemoryCallLog {
	return &MemoryCallLog{}
}

func (l *MemoryCallLog) SaveCall(rec CallRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
}

func (l *MemoryCallLog) ListCalls() []CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CallRecord(nil), l.recs...)
}

// SQLiteCallLog persists call records in the call_records table.
type SQLiteCallLog struct {
	db *DB
}

func NewSQLiteCallLog(db *DB) *SQLiteCallLog {
	return &SQLiteCallLog{db: db}
}

func (l *SQLiteCallLog) SaveCall(rec CallRecord) {
	_, err := l.db.sql.Exec(
		`INSERT OR REPLACE INTO call_records (call_sid, caller, transcript, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.CallSid, rec.Caller, rec.Transcript,
		rec.StartedAt.Format(time.RFC3339), rec.EndedAt.Format(time.RFC3339),
	)
	if err != nil {
		l.db.log.Error().Err(err).Str("callSid", rec.CallSid).Msg("failed to save call record")
	}
}

func (l *SQLiteCallLog) ListCalls() []CallRecord {
	rows, err := l.db.sql.Query(
		`SELECT call_sid, caller, transcript, started_at, ended_at FROM call_records ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		var rec CallRecord
		var started, ended string
		if err := rows.Scan(&rec.CallSid, &rec.Caller, &rec.Transcript, &started, &ended); err != nil {
			continue
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.EndedAt, _ = time.Parse(time.RFC3339, ended)
		out = append(out, rec)
	}
	return out
}
