// Command devtoken ensures the development user exists and prints a bearer
// token for it. It refuses to run when BUGTRACK_ENV is production.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bugtrack/cmd/internal/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.RunDevToken(ctx, os.Args[1:], os.Stdout); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}
