package bugs

import (
	"context"
	"errors"
	"testing"
	"time"
)

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, s Store, author string) {
	t.Helper()

	ctx := context.Background()
	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.Create(ctx, CreateInput{Title: "first", Content: "c1", Author: author, Tags: []string{"ui"}, Now: base})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := s.Create(ctx, CreateInput{Title: "second", Content: "c2", Author: author, Now: base.Add(time.Minute)})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.Status != StatusOpen || first.Author != author {
		t.Fatalf("unexpected created bug: %+v", first)
	}

	list, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}

	page, err := s.List(ctx, ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != first.ID {
		t.Fatalf("expected second page to hold the oldest bug, got %+v", page)
	}
	if past, err := s.List(ctx, ListOptions{Limit: 10, Offset: 5}); err != nil || len(past) != 0 {
		t.Fatalf("expected empty page past the end, got %+v %v", past, err)
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil || got.Title != "first" || len(got.Tags) != 1 {
		t.Fatalf("get: %+v %v", got, err)
	}

	title := "first (edited)"
	status := StatusResolved
	updated, err := s.Update(ctx, first.ID, UpdateInput{Title: &title, Status: &status, Now: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Status != StatusResolved || updated.Author != author {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("updated_at not bumped: %+v", updated)
	}

	if _, err := s.Get(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", UpdateInput{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted bug to be gone, got %v", err)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	storeContract(t, NewMemoryStore(), "01HZX3Q7J9V6M3T4K8N2P5R7SA")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	b, err := s.Create(ctx, CreateInput{Title: "t", Content: "c", Author: "a", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b.Tags[0] = "mutated"

	got, err := s.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tags[0] != "x" {
		t.Fatalf("store leaked internal slice: %v", got.Tags)
	}
}
