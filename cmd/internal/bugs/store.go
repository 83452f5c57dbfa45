package bugs

import "context"

// Store persists bugs. List returns newest first.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Bug, error)
	List(ctx context.Context, opts ListOptions) ([]Bug, error)
	Get(ctx context.Context, id string) (Bug, error)
	Update(ctx context.Context, id string, in UpdateInput) (Bug, error)
	Delete(ctx context.Context, id string) error
}

// ListOptions pages List. Limit <= 0 returns every bug from Offset on.
type ListOptions struct {
	Limit  int
	Offset int
}

func (o ListOptions) window(n int) (start, end int) {
	start = min(max(o.Offset, 0), n)
	end = n
	if o.Limit > 0 && start+o.Limit < n {
		end = start + o.Limit
	}
	return start, end
}
