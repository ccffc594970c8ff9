// Command console is a terminal client for the operator agent console.
//
// Usage:
//
//	CONSOLE_PASSWORD=... console -tenant acme -login alice -session sess-1 -prompt "..."
//
// Flags:
//
//	-base-url string  Backend base URL (default http://localhost:8080)
//	-tenant string    Tenant key (required on first login)
//	-login string     Login ID (required on first login)
//	-session string   Session ID to stream against (required)
//	-prompt string    Question to send (required)
//	-state string     Credential state file (default ~/.console/credentials.json)
//	-logout           Revoke the server session and clear local state
//	-verbose          Enable debug logging
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"

	"github.com/opsconsole/console"
	"github.com/opsconsole/console/api"
	"github.com/opsconsole/console/exchange"
	"github.com/opsconsole/console/store"
	"github.com/opsconsole/console/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "console: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL   = flag.String("base-url", "http://localhost:8080", "Backend base URL")
		tenant    = flag.String("tenant", "", "Tenant key")
		loginID   = flag.String("login", "", "Login ID")
		sessionID = flag.String("session", "", "Session ID to stream against")
		prompt    = flag.String("prompt", "", "Question to send")
		statePath = flag.String("state", defaultStatePath(), "Credential state file")
		logout    = flag.Bool("logout", false, "Revoke the server session and clear local state")
		verbose   = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(*verbose)

	creds := store.New(*statePath, store.WithLogger(logger))
	auth := api.NewAuthClient(*baseURL, creds)

	if *logout {
		if err := auth.Logout(ctx); err != nil {
			logger.Warn("logout call failed, local state cleared anyway", "error", err)
		}
		fmt.Fprintln(os.Stderr, "Signed out.")
		return nil
	}

	if *sessionID == "" || *prompt == "" {
		flag.Usage()
		return fmt.Errorf("-session and -prompt are required")
	}

	if creds.Get().AccessToken == "" {
		if err := login(ctx, auth, *tenant, *loginID); err != nil {
			return err
		}
	}

	client := transport.New(*baseURL, creds, auth.Refresh,
		transport.WithLogger(logger),
		transport.WithForcedLoginHook(func() {
			fmt.Fprintln(os.Stderr, "Your permissions changed. Please sign in again.")
		}),
	)

	theme := console.DefaultTheme()
	styles := newStyles(theme)

	controller := exchange.New(client,
		exchange.WithLogger(logger),
		exchange.WithEventHandler(func(ev console.Event) {
			printEvent(styles, ev)
		}),
	)

	result, err := controller.Run(ctx, *sessionID, *prompt)
	fmt.Fprintln(os.Stdout)
	if err != nil {
		banner := console.UserBanner(err, "Session not found. It may have been closed.")
		fmt.Fprintln(os.Stderr, styles.err.Render(fmt.Sprintf("[%s] %s", banner.Code, banner.Message)))
		return err
	}
	if len(result.Citations) > 0 {
		fmt.Fprintln(os.Stdout, styles.muted.Render(fmt.Sprintf("%d evidence sources", len(result.Citations))))
	}
	logger.Debug("exchange complete", "message_id", result.MessageID, "trace_id", result.TraceID)
	return nil
}

// login runs the interactive sign-in, including an MFA challenge when the
// backend demands one.
func login(ctx context.Context, auth *api.AuthClient, tenant, loginID string) error {
	if tenant == "" || loginID == "" {
		return fmt.Errorf("not signed in: -tenant and -login are required")
	}
	password := os.Getenv("CONSOLE_PASSWORD")
	if password == "" {
		var err error
		password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
	}

	result, err := auth.Login(ctx, api.LoginParams{TenantKey: tenant, LoginID: loginID, Password: password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	switch result.Status {
	case api.LoginAccepted:
		return nil
	case api.LoginMFASetupRequired:
		enrollment, err := auth.EnrollMFA(ctx, tenant, result.MFATicketID)
		if err != nil {
			return fmt.Errorf("mfa enroll: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Register this secret in your authenticator app: %s\n", enrollment.TOTPSecret)
		code, err := promptLine("TOTP code: ")
		if err != nil {
			return err
		}
		if err := auth.ActivateMFA(ctx, tenant, enrollment.MFATicketID, code); err != nil {
			return fmt.Errorf("mfa activate: %w", err)
		}
		return nil
	case api.LoginMFARequired:
		code, err := promptLine("TOTP code: ")
		if err != nil {
			return err
		}
		if err := auth.VerifyMFA(ctx, tenant, result.MFATicketID, code, ""); err != nil {
			return fmt.Errorf("mfa verify: %w", err)
		}
		return nil
	}
	return fmt.Errorf("login: unexpected result %q", result.Status)
}

type styles struct {
	answer   lipgloss.Style
	citation lipgloss.Style
	notice   lipgloss.Style
	err      lipgloss.Style
	muted    lipgloss.Style
}

func newStyles(theme console.Theme) styles {
	color := func(idx int) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprint(idx)))
	}
	return styles{
		answer:   color(theme.Answer),
		citation: color(theme.Citation),
		notice:   color(theme.Notice),
		err:      color(theme.Error),
		muted:    color(theme.Muted),
	}
}

func printEvent(s styles, ev console.Event) {
	switch ev := ev.(type) {
	case console.EventAnswerDelta:
		fmt.Fprint(os.Stdout, s.answer.Render(ev.Text))
	case console.EventToolActivity:
		fmt.Fprintln(os.Stderr, s.muted.Render(fmt.Sprintf("· %s (%s)", ev.ToolName, ev.Status)))
	case console.EventCitation:
		fmt.Fprintln(os.Stderr, s.citation.Render(fmt.Sprintf("[%s] %s", ev.SourceID, ev.Title)))
	case console.EventSafeNotice:
		fmt.Fprintln(os.Stderr, s.notice.Render(ev.Message))
	case console.EventStreamError:
		fmt.Fprintln(os.Stderr, s.err.Render(fmt.Sprintf("[%s] %s", ev.Code, ev.Message)))
	}
}

func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLogger(verbose bool) *slog.Logger {
	opts := charmlog.Options{ReportTimestamp: true}
	if verbose {
		opts.Level = charmlog.DebugLevel
	} else {
		opts.Level = charmlog.WarnLevel
	}
	return slog.New(charmlog.NewWithOptions(os.Stderr, opts))
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".console", "credentials.json")
}
