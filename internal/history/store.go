// Package history keeps one check-in result per (day, target) for a bounded
// number of days.
//
// Every Record loads the whole mapping, upserts one entry, prunes old days
// and writes the mapping back. The load and save are not atomic: two
// writers racing on the same key can lose an update. The orchestrator
// serializes its own runs; separate processes sharing a store get
// last-writer-wins.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crucial707/autosignin/internal/models"
)

// Key is the persisted key under which the whole history mapping lives.
const Key = "signin_history"

// DefaultRetentionDays is how many days back a save keeps.
const DefaultRetentionDays = 30

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// KV is the wholesale key/value persistence the store sits on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store reads and writes the history mapping.
type Store struct {
	kv   KV
	days int
	now  func() time.Time
}

// NewStore returns a Store keeping days of history (DefaultRetentionDays if <= 0).
func NewStore(kv KV, days int) *Store {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return &Store{kv: kv, days: days, now: time.Now}
}

// Today returns the store's current date key.
func (s *Store) Today() string {
	return s.now().Format(dateLayout)
}

// Record upserts the entry for (date, target) with the current time and prunes
// days older than the retention window.
func (s *Store) Record(ctx context.Context, date, target string, o models.Outcome) error {
	h, err := s.load(ctx)
	if err != nil {
		return err
	}

	day, ok := h[date]
	if !ok {
		day = make(map[string]models.HistoryEntry)
		h[date] = day
	}
	day[target] = models.HistoryEntry{
		Time:    s.now().Format(timeLayout),
		Success: o.Success,
		Message: o.Message,
	}

	Prune(h, s.cutoff(s.days))

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.kv.Set(ctx, Key, data); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Window returns the entries from the last days days. It never writes.
func (s *Store) Window(ctx context.Context, days int) (models.History, error) {
	if days <= 0 {
		days = s.days
	}
	h, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	Prune(h, s.cutoff(days))
	return h, nil
}

// Prune removes every date strictly before cutoff (YYYY-MM-DD).
func Prune(h models.History, cutoff string) {
	for date := range h {
		if date < cutoff {
			delete(h, date)
		}
	}
}

func (s *Store) cutoff(days int) string {
	return s.now().AddDate(0, 0, -days).Format(dateLayout)
}

func (s *Store) load(ctx context.Context) (models.History, error) {
	data, err := s.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	h := models.History{}
	if len(data) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return h, nil
}
