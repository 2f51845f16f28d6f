package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xavierca1/route2rise-console/internal/config"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/infra/storage"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

const usage = `usage: leadctl [-config file] <command> [args]

commands:
  login [-u username]      sign in and store the session
  logout                   forget the stored session
  whoami                   show the stored session without verifying it
  verify                   confirm the stored session with the backend
  dashboard [-watch] [-assigned-to name]
  leads list|get|create|update|delete|interact ...
`

// app is one invocation: the session and lead service over the session file.
type app struct {
	cfg      config.CLIConfig
	log      *zap.Logger
	sessions *usecase.SessionStore
	leads    *usecase.LeadService
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadCLI(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := zap.NewNop()
	if cfg.Debug {
		if log, err = zap.NewDevelopment(); err != nil {
			panic(err)
		}
	}
	defer log.Sync()

	store := storage.NewFileStore(cfg.SessionFile)
	client := crm.NewClient(cfg.APIBaseURL, cfg.APITimeout, store, log.Named("crm"))
	a := &app{
		cfg:      cfg,
		log:      log,
		sessions: usecase.NewSessionStore(client, usecase.ParseVerifyPolicy(cfg.VerifyPolicy), log.Named("session")),
		leads:    usecase.NewLeadService(client),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.sessions.Logout(ctx)
		fmt.Println("Logged out.")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "verify":
		return a.verify(ctx)
	case "dashboard":
		return a.dashboard(ctx, args)
	case "leads":
		return a.leadsCmd(ctx, args)
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}
