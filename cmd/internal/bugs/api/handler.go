package bugsapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bugtrack/cmd/identity/ids"
	"bugtrack/cmd/internal/auth"
	"bugtrack/cmd/internal/bugs"
	"bugtrack/cmd/internal/httpjson"
	"bugtrack/cmd/internal/realtime"
)

// Broadcaster fans bug events out to feed subscribers. *realtime.Feed
// satisfies it.
type Broadcaster interface {
	Broadcast(typ string, payload any) int
}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(string, any) int { return 0 }

// Handler serves /api/bugs.
type Handler struct {
	log      *slog.Logger
	store    bugs.Store
	pipeline *auth.Pipeline
	events   Broadcaster
	maxBody  int64
	now      func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithBroadcaster publishes bug mutations to b.
func WithBroadcaster(b Broadcaster) HandlerOption {
	return func(h *Handler) {
		if b != nil {
			h.events = b
		}
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs the bugs API. Mutating routes run behind pipeline.
func NewHandler(log *slog.Logger, store bugs.Store, pipeline *auth.Pipeline, opts ...HandlerOption) (*Handler, error) {
	if store == nil {
		return nil, errors.New("bugsapi: nil store")
	}
	if pipeline == nil {
		return nil, errors.New("bugsapi: nil auth pipeline")
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		log:      log,
		store:    store,
		pipeline: pipeline,
		events:   noopBroadcaster{},
		maxBody:  httpjson.DefaultMaxBody,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires bug routes onto mux. Reads are public.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("POST /api/bugs", h.pipeline.RequireFunc(h.handleCreate))
	mux.HandleFunc("GET /api/bugs", h.handleList)
	mux.HandleFunc("GET /api/bugs/{id}", h.handleGet)
	mux.Handle("PUT /api/bugs/{id}", h.pipeline.RequireFunc(h.handleUpdate))
	mux.Handle("DELETE /api/bugs/{id}", h.pipeline.RequireFunc(h.handleDelete))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.WriteError(w, h.log, r, auth.ErrUnauthenticated)
		return
	}

	var req createBugRequest
	if err := httpjson.Decode(w, r, h.maxBody, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	bug, err := h.store.Create(r.Context(), bugs.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Author:  user.ID,
		Tags:    req.Tags,
		Status:  bugs.Status(strings.TrimSpace(req.Status)),
		Now:     h.now(),
	})
	if err != nil {
		h.writeStoreError(w, r, "bugs.create.fail", err)
		return
	}

	resp := toBugResponse(bug)
	h.log.Info("bugs.created", "bug_id", bug.ID, "author", bug.Author)
	h.events.Broadcast(realtime.TypeBugCreated, resp)
	httpjson.Write(w, http.StatusCreated, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r.URL.Query())
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	list, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.writeStoreError(w, r, "bugs.list.fail", err)
		return
	}
	out := make([]bugResponse, 0, len(list))
	for _, b := range list {
		out = append(out, toBugResponse(b))
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	bug, err := h.lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, r, "bugs.get.fail", err)
		return
	}
	httpjson.Write(w, http.StatusOK, toBugResponse(bug))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	existing, err := h.lookup(ctx, id)
	if err != nil {
		h.writeStoreError(w, r, "bugs.update.lookup.fail", err)
		return
	}
	if err := auth.AuthorizeOwner(ctx, existing.Author); err != nil {
		auth.WriteError(w, h.log, r, err)
		return
	}

	var req updateBugRequest
	if err := httpjson.Decode(w, r, h.maxBody, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	in := bugs.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
		Now:     h.now(),
	}
	if req.Status != nil {
		st := bugs.Status(strings.TrimSpace(*req.Status))
		in.Status = &st
	}

	bug, err := h.store.Update(ctx, id, in)
	if err != nil {
		h.writeStoreError(w, r, "bugs.update.fail", err)
		return
	}

	resp := toBugResponse(bug)
	h.events.Broadcast(realtime.TypeBugUpdated, resp)
	httpjson.Write(w, http.StatusOK, resp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	existing, err := h.lookup(ctx, id)
	if err != nil {
		h.writeStoreError(w, r, "bugs.delete.lookup.fail", err)
		return
	}
	if err := auth.AuthorizeOwner(ctx, existing.Author); err != nil {
		auth.WriteError(w, h.log, r, err)
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		h.writeStoreError(w, r, "bugs.delete.fail", err)
		return
	}

	h.log.Info("bugs.deleted", "bug_id", id, "author", existing.Author)
	h.events.Broadcast(realtime.TypeBugDeleted, deletedEvent{ID: id, Author: existing.Author})
	httpjson.Write(w, http.StatusOK, messageResponse{Message: "bug deleted"})
}

// lookup treats ids that are not ULIDs as missing without querying the store.
func (h *Handler) lookup(ctx context.Context, id string) (bugs.Bug, error) {
	if !ids.IsULID(id) {
		return bugs.Bug{}, bugs.ErrNotFound
	}
	return h.store.Get(ctx, id)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, event string, err error) {
	switch {
	case errors.Is(err, bugs.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "not_found", "bug not found")
	case errors.Is(err, bugs.ErrInvalidInput):
		httpjson.Error(w, http.StatusBadRequest, "invalid_request", invalidMessage(err))
	default:
		h.log.Error(event, "path", r.URL.Path, "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// invalidMessage strips the sentinel prefix from a wrapped ErrInvalidInput.
func invalidMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, bugs.ErrInvalidInput.Error()+": "); ok && rest != "" {
		return rest
	}
	return "invalid request"
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPage         = 1 << 20
)

// listOptions reads the optional ?page= (1-based) and ?limit= parameters.
// Without either the whole list is returned. limit is capped at maxPageSize.
func listOptions(q url.Values) (bugs.ListOptions, error) {
	rawPage, rawLimit := strings.TrimSpace(q.Get("page")), strings.TrimSpace(q.Get("limit"))
	if rawPage == "" && rawLimit == "" {
		return bugs.ListOptions{}, nil
	}

	page, limit := 1, defaultPageSize
	if rawPage != "" {
		n, err := strconv.Atoi(rawPage)
		if err != nil || n < 1 || n > maxPage {
			return bugs.ListOptions{}, errors.New("page must be a positive integer")
		}
		page = n
	}
	if rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n < 1 {
			return bugs.ListOptions{}, errors.New("limit must be a positive integer")
		}
		limit = min(n, maxPageSize)
	}
	return bugs.ListOptions{Limit: limit, Offset: (page - 1) * limit}, nil
}
