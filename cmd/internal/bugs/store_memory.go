package bugs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bugtrack/cmd/identity/ids"
)

// MemoryStore keeps bugs in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	bugs map[string]Bug
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bugs: make(map[string]Bug)}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Bug, error) {
	if err := ctx.Err(); err != nil {
		return Bug{}, err
	}
	if err := in.Normalize(); err != nil {
		return Bug{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Bug{}, err
	}

	b := Bug{
		ID:        id,
		Title:     in.Title,
		Content:   in.Content,
		Author:    in.Author,
		Tags:      in.Tags,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.bugs[b.ID] = b
	s.mu.Unlock()

	return cloneBug(b), nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]Bug, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Bug, 0, len(s.bugs))
	for _, b := range s.bugs {
		out = append(out, cloneBug(b))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	start, end := opts.window(len(out))
	return out[start:end], nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Bug, error) {
	if err := ctx.Err(); err != nil {
		return Bug{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bugs[strings.TrimSpace(id)]
	if !ok {
		return Bug{}, ErrNotFound
	}
	return cloneBug(b), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, in UpdateInput) (Bug, error) {
	if err := ctx.Err(); err != nil {
		return Bug{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	b, ok := s.bugs[id]
	if !ok {
		return Bug{}, ErrNotFound
	}
	b = cloneBug(b)
	if _, err := in.Apply(&b); err != nil {
		return Bug{}, err
	}
	s.bugs[id] = b
	return cloneBug(b), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if _, ok := s.bugs[id]; !ok {
		return ErrNotFound
	}
	delete(s.bugs, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
