package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Document is a stored document in a Memory store.
type Document struct {
	ID     string
	Fields map[string]any
}

// Memory keeps documents in process. It backs --dry-run.
type Memory struct {
	mu    sync.Mutex
	colls map[string][]Document
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{colls: make(map[string][]Document)}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.colls[collection] = append(m.colls[collection], Document{
		ID:     id,
		Fields: ResolveTimestamps(fields, time.Now().UTC()),
	})
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) DeleteWhere(ctx context.Context, collection string, match map[string]any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.colls[collection][:0]
	removed := 0
	for _, d := range m.colls[collection] {
		if matches(d.Fields, match) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	m.colls[collection] = kept
	return removed, nil
}

func (m *Memory) Close() error { return nil }

// Documents returns a copy of the documents in collection, in insert order.
func (m *Memory) Documents(collection string) []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Document(nil), m.colls[collection]...)
}

func matches(fields, match map[string]any) bool {
	for k, want := range match {
		got, ok := fields[k]
		if !ok || Text(got) != Text(want) {
			return false
		}
	}
	return true
}
