// Command feedsmoke is a CI-friendly end-to-end check of the bug event feed.
//
// It validates:
//   - handshake + subprotocol selection
//   - hello.ack on connect
//   - ping -> pong
//   - POST /api/bugs fans bug.created out to two subscribers
//   - PUT and DELETE fan out bug.updated and bug.deleted
//
// Against a development server no token is needed; pass -token otherwise.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bugtrack/cmd/internal/realtime"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20

type smokeClient struct {
	name      string
	conn      *websocket.Conn
	sessionID string

	inbox chan realtime.Envelope
	errCh chan error
}

type bugEvent struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Status string `json:"status"`
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:8080/api/bugs/events", "Feed WebSocket URL")
		apiURL  = flag.String("api", "http://127.0.0.1:8080", "HTTP base URL of the API")
		origin  = flag.String("origin", "http://localhost", "Origin header to send (browser-like WS handshake)")
		token   = flag.String("token", "", "Bearer token for bug mutations (optional in development)")
		title   = flag.String("title", "feed smoke", "Title of the bug to create")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateWSURL(*wsURL); err != nil {
		fatalf("invalid -url: %v", err)
	}
	if err := validateHTTPURL(*apiURL); err != nil {
		fatalf("invalid -api: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()
	api := &apiClient{base: strings.TrimRight(*apiURL, "/"), token: *token, http: &http.Client{Timeout: *timeout}}

	a := mustConnect(root, "A", *wsURL, *origin, *timeout)
	defer closeWS(a.conn)

	b := mustConnect(root, "B", *wsURL, *origin, *timeout)
	defer closeWS(b.conn)

	if *verbose {
		fmt.Printf("connected: A=%s B=%s origin=%q\n", a.sessionID, b.sessionID, *origin)
	}

	mustPing(root, a, *timeout)

	created := api.mustDo(root, http.MethodPost, "/api/bugs", map[string]any{
		"title":   *title,
		"content": "created by feedsmoke",
		"tags":    []string{"smoke"},
	}, http.StatusCreated)
	if created.ID == "" || created.Author == "" {
		fatalf("create response missing id/author: %+v", created)
	}
	if *verbose {
		fmt.Printf("created: id=%s author=%s\n", created.ID, created.Author)
	}

	for _, c := range []*smokeClient{a, b} {
		ev := c.mustReadBugEvent(root, realtime.TypeBugCreated, created.ID, *timeout)
		if ev.Title != *title {
			fatalf("bug.created mismatch (%s): got=%+v", c.name, ev)
		}
	}

	api.mustDo(root, http.MethodPut, "/api/bugs/"+created.ID, map[string]any{"status": "resolved"}, http.StatusOK)
	for _, c := range []*smokeClient{a, b} {
		ev := c.mustReadBugEvent(root, realtime.TypeBugUpdated, created.ID, *timeout)
		if ev.Status != "resolved" {
			fatalf("bug.updated mismatch (%s): got=%+v", c.name, ev)
		}
	}

	api.mustDo(root, http.MethodDelete, "/api/bugs/"+created.ID, nil, http.StatusOK)
	for _, c := range []*smokeClient{a, b} {
		ev := c.mustReadBugEvent(root, realtime.TypeBugDeleted, created.ID, *timeout)
		if ev.Author != created.Author {
			fatalf("bug.deleted mismatch (%s): got=%+v", c.name, ev)
		}
	}

	api.mustStatus(root, http.MethodGet, "/api/bugs/"+created.ID, http.StatusNotFound)

	fmt.Printf("OK: A=%s B=%s bug_id=%s author=%s\n", a.sessionID, b.sessionID, created.ID, created.Author)
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	if strings.TrimSpace(u.Path) == "" {
		return errors.New("missing path")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (a *apiClient) newRequest(ctx context.Context, method, path string, body any) *http.Request {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fatalf("marshal %s %s body: %v", method, path, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, rdr)
	if err != nil {
		fatalf("build %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return req
}

func (a *apiClient) mustDo(ctx context.Context, method, path string, body any, wantStatus int) bugEvent {
	resp, err := a.http.Do(a.newRequest(ctx, method, path, body))
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d body=%s", method, path, resp.StatusCode, wantStatus, strings.TrimSpace(string(raw)))
	}

	var out bugEvent
	if method != http.MethodDelete {
		if err := json.Unmarshal(raw, &out); err != nil {
			fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return out
}

func (a *apiClient) mustStatus(ctx context.Context, method, path string, wantStatus int) {
	resp, err := a.http.Do(a.newRequest(ctx, method, path, nil))
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d", method, path, resp.StatusCode, wantStatus)
	}
}

func mustConnect(parent context.Context, name, wsURL, origin string, stepTimeout time.Duration) *smokeClient {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{realtime.Subprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect %s: %v", name, err)
	}
	if got := conn.Subprotocol(); got != realtime.Subprotocol {
		fatalf("subprotocol mismatch (%s): got=%q want=%q", name, got, realtime.Subprotocol)
	}

	conn.SetReadLimit(maxReadBytes)

	c := &smokeClient{
		name:  name,
		conn:  conn,
		inbox: make(chan realtime.Envelope, 512),
		errCh: make(chan error, 1),
	}
	c.startReadLoop()

	ack := c.mustReadUntilType(parent, realtime.TypeHelloAck, stepTimeout)

	var p realtime.HelloAckPayload
	if err := json.Unmarshal(ack.Payload, &p); err != nil {
		fatalf("unmarshal hello.ack payload (%s): %v", name, err)
	}
	if strings.TrimSpace(p.SessionID) == "" {
		fatalf("hello.ack missing session_id (%s)", name)
	}
	c.sessionID = p.SessionID
	return c
}

func mustPing(parent context.Context, c *smokeClient, stepTimeout time.Duration) {
	ping := realtime.Envelope{
		V:    realtime.Version,
		Type: realtime.TypePing,
		ID:   fmt.Sprintf("%s-ping", c.name),
		TS:   time.Now().UTC(),
	}
	mustWriteWithTimeout(parent, c.conn, ping, stepTimeout)
	c.mustReadUntilType(parent, realtime.TypePong, stepTimeout)
}

func (c *smokeClient) startReadLoop() {
	go func() {
		defer close(c.inbox)

		for {
			mt, data, err := c.conn.Read(context.Background())
			if err != nil {
				c.fail(err)
				return
			}
			if mt != websocket.MessageText {
				c.fail(fmt.Errorf("unsupported message type: %v", mt))
				return
			}

			var env realtime.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				c.fail(fmt.Errorf("bad json: %w", err))
				return
			}
			if err := env.Validate(); err != nil {
				c.fail(fmt.Errorf("bad envelope: %w", err))
				return
			}

			select {
			case c.inbox <- env:
			default:
				c.fail(errors.New("inbox overflow: consumer too slow"))
				return
			}
		}
	}()
}

func (c *smokeClient) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

// mustReadBugEvent returns the next wantType event about bug id.
func (c *smokeClient) mustReadBugEvent(parent context.Context, wantType, id string, stepTimeout time.Duration) bugEvent {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		env := c.mustReadUntilType(ctx, wantType, stepTimeout)
		var ev bugEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			fatalf("unmarshal %s payload (%s): %v", wantType, c.name, err)
		}
		if ev.ID == id {
			return ev
		}
	}
}

// mustReadUntilType skips unrelated bug events (other writers may be active)
// and fails on error envelopes.
func (c *smokeClient) mustReadUntilType(parent context.Context, wantType string, stepTimeout time.Duration) realtime.Envelope {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			fatalf("timeout waiting for %q (%s): %v", wantType, c.name, ctx.Err())
		case err := <-c.errCh:
			fatalf("connection error while waiting for %q (%s): %v", wantType, c.name, err)
		case env, ok := <-c.inbox:
			if !ok {
				fatalf("connection closed while waiting for %q (%s)", wantType, c.name)
			}
			switch env.Type {
			case wantType:
				return env
			case realtime.TypeError:
				var ep realtime.ErrorPayload
				_ = json.Unmarshal(env.Payload, &ep)
				fatalf("server error (%s): code=%q msg=%q", c.name, ep.Code, ep.Message)
			case realtime.TypeBugCreated, realtime.TypeBugUpdated, realtime.TypeBugDeleted:
				continue
			default:
				fatalf("unexpected envelope type (%s): got=%q want=%q", c.name, env.Type, wantType)
			}
		}
	}
}

func mustWriteWithTimeout(parent context.Context, conn *websocket.Conn, env realtime.Envelope, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		fatalf("marshal envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		fatalf("write failed: %v", err)
	}
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
