package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"bugtrack/cmd/identity"
)

// ErrDevTokenUnavailable is returned when no development identity exists,
// which is always the case in production.
var ErrDevTokenUnavailable = errors.New("devtoken: development identity is disabled")

// DevToken is a freshly minted bearer token for the development identity.
type DevToken struct {
	User      identity.User
	Token     string
	ExpiresAt time.Time
}

// IssueDevToken ensures the development user exists and signs a token for it.
func (a *App) IssueDevToken(ctx context.Context) (DevToken, error) {
	dev := a.pipeline.Dev()
	if dev == nil {
		return DevToken{}, ErrDevTokenUnavailable
	}
	u, err := dev.EnsureUser(ctx)
	if err != nil {
		return DevToken{}, err
	}
	tok, exp, err := a.codec.Issue(u.ID, time.Now().UTC())
	if err != nil {
		return DevToken{}, fmt.Errorf("devtoken: issue: %w", err)
	}
	return DevToken{User: u, Token: tok, ExpiresAt: exp}, nil
}

type devTokenOutput struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RunDevToken is the CLI entrypoint used by cmd/devtoken. The token is written
// to out; logs go to the configured logger.
func RunDevToken(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print user, token and expiry as JSON")
	allowMemory := fs.Bool("allow-memory", false, "run without a database (token only valid for this process)")
	fs.SetOutput(out)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Production() {
		return ErrDevTokenUnavailable
	}
	if cfg.DatabaseURL == "" && !*allowMemory {
		return errors.New("devtoken: BUGTRACK_DATABASE_URL is required")
	}
	log := NewLogger(cfg)

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	dt, err := a.IssueDevToken(ctx)
	if err != nil {
		log.Error("devtoken.fail", "err", err)
		return err
	}
	log.Info("devtoken.issued", "user_id", dt.User.ID, "email", dt.User.Email, "expires_at", dt.ExpiresAt)

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(devTokenOutput{
			UserID:    dt.User.ID,
			Email:     dt.User.Email,
			Token:     dt.Token,
			ExpiresAt: dt.ExpiresAt,
		})
	}
	_, err = fmt.Fprintln(out, dt.Token)
	return err
}
