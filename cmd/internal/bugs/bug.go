package bugs

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is a bug's workflow state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	default:
		return false
	}
}

// Bug is a tracked issue.
type Bug struct {
	ID        string
	Title     string
	Content   string
	Author    string
	Tags      []string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput describes a new bug. Status defaults to open.
type CreateInput struct {
	Title   string
	Content string
	Author  string
	Tags    []string
	Status  Status
	Now     time.Time
}

// UpdateInput is a partial update. Nil fields are left unchanged; empty title or
// content and unknown statuses are ignored.
type UpdateInput struct {
	Title   *string
	Content *string
	Status  *Status
	Tags    *[]string
	Now     time.Time
}

const (
	maxTitleRunes   = 200
	maxContentRunes = 20000
	maxTags         = 20
	maxTagRunes     = 48
)

// Normalize trims fields, defaults the status and validates the input.
func (in *CreateInput) Normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Author = strings.TrimSpace(in.Author)

	if in.Title == "" || in.Content == "" {
		return invalid("title and content are required")
	}
	if in.Author == "" {
		return invalid("author is required")
	}
	if err := checkText(in.Title, in.Content); err != nil {
		return err
	}
	if in.Status == "" {
		in.Status = StatusOpen
	}
	if !in.Status.Valid() {
		return invalid(fmt.Sprintf("unknown status %q", in.Status))
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags
	return nil
}

// Apply merges in onto b and reports whether anything changed.
func (in UpdateInput) Apply(b *Bug) (bool, error) {
	changed := false

	if in.Title != nil {
		if t := strings.TrimSpace(*in.Title); t != "" && t != b.Title {
			if err := checkText(t, ""); err != nil {
				return false, err
			}
			b.Title = t
			changed = true
		}
	}
	if in.Content != nil {
		if c := strings.TrimSpace(*in.Content); c != "" && c != b.Content {
			if err := checkText("", c); err != nil {
				return false, err
			}
			b.Content = c
			changed = true
		}
	}
	if in.Status != nil && in.Status.Valid() && *in.Status != b.Status {
		b.Status = *in.Status
		changed = true
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return false, err
		}
		if !equalTags(tags, b.Tags) {
			b.Tags = tags
			changed = true
		}
	}

	if changed {
		now := in.Now
		if now.IsZero() {
			now = time.Now().UTC()
		}
		b.UpdatedAt = now
	}
	return changed, nil
}

func checkText(title, content string) error {
	if utf8.RuneCountInString(title) > maxTitleRunes {
		return invalid("title too long")
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return invalid("content too long")
	}
	return nil
}

// normalizeTags trims, drops empties and de-duplicates, keeping first-seen order.
func normalizeTags(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagRunes {
			return nil, invalid("tag too long")
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, invalid("too many tags")
	}
	return out, nil
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func cloneBug(b Bug) Bug {
	b.Tags = append([]string(nil), b.Tags...)
	return b
}
