package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/shell"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("u", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	if *username == "" {
		fmt.Print("Username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		*username = strings.TrimSpace(line)
	}

	password, err := readPassword(reader)
	if err != nil {
		return err
	}

	resp, err := a.sessions.Login(ctx, *username, password)
	if err != nil {
		return errors.New(loginMessage(err))
	}
	fmt.Printf("Welcome, %s.\n", resp.Founder)
	return nil
}

// readPassword hides input on a terminal and reads a plain line otherwise.
func readPassword(reader *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// loginMessage prefers the backend's own wording, as the web login does.
func loginMessage(err error) string {
	var apiErr *crm.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if crm.IsTransport(err) {
		return usecase.Message(err)
	}
	return "Login failed"
}

func (a *app) whoami(ctx context.Context) error {
	user := a.sessions.CurrentUser(ctx)
	if user.Token == "" {
		fmt.Println("Not logged in.")
		return nil
	}

	fmt.Printf("Founder: %s\n", user.Founder)
	if user.ExpiresAt != nil {
		fmt.Printf("Token expires: %s (%s)\n",
			user.ExpiresAt.Local().Format(time.RFC1123),
			time.Until(*user.ExpiresAt).Round(time.Minute))
	}
	fmt.Println("(stored locally, not verified)")
	return nil
}

func (a *app) verify(ctx context.Context) error {
	identity := a.sessions.Verify(ctx)
	if identity == nil {
		return usecase.ErrNotAuthenticated
	}
	fmt.Printf("Authenticated as %s (%s).\n", identity.Founder, identity.Username)
	return nil
}

// authorize mirrors an application load: the shell verifies once with
// the backend, then the view's own guard runs.
func (a *app) authorize(ctx context.Context, view string) error {
	sh := shell.New(a.sessions)
	if sh.Bootstrap(ctx) != shell.StateAuthenticated {
		return fmt.Errorf("%w: run `leadctl login` first", usecase.ErrNotAuthenticated)
	}
	if d := shell.NewGuard(a.sessions).Check(ctx, view); d.Kind != shell.Render {
		return fmt.Errorf("%w: run `leadctl login` first", usecase.ErrNotAuthenticated)
	}
	return nil
}
