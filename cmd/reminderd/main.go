package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/route2rise-console/internal/config"
	"github.com/xavierca1/route2rise-console/internal/infra/http/handlers"
	"github.com/xavierca1/route2rise-console/internal/infra/integration/crm"
	"github.com/xavierca1/route2rise-console/internal/infra/mail"
	"github.com/xavierca1/route2rise-console/internal/infra/queue"
	"github.com/xavierca1/route2rise-console/internal/infra/storage"
	"github.com/xavierca1/route2rise-console/internal/infra/worker"
	"github.com/xavierca1/route2rise-console/internal/logger"
	"github.com/xavierca1/route2rise-console/internal/shell"
	"github.com/xavierca1/route2rise-console/internal/telemetry"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err == nil {
		err = cfg.ValidateReminders()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.New(ctx, "route2rise-reminderd", cfg.TelemetryEndpoint, cfg.TelemetryInsecure, log)
	if err != nil {
		log.Fatal("init telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	// 1. Session for the daemon's own account
	client := crm.NewClient(cfg.APIBaseURL, cfg.APITimeout, storage.NewMemoryStore(), log.Named("crm"))
	sessions := usecase.NewSessionStore(client, usecase.ParseVerifyPolicy(cfg.VerifyPolicy), log.Named("session"))
	leads := usecase.NewLeadService(client)

	login := func(ctx context.Context) error {
		_, err := sessions.Login(ctx, cfg.ReminderUsername, cfg.ReminderPassword)
		return err
	}
	if err := login(ctx); err != nil {
		log.Fatal("reminder account login", zap.Error(err))
	}
	if shell.New(sessions).Bootstrap(ctx) != shell.StateAuthenticated {
		log.Fatal("reminder account session rejected by backend")
	}

	// 2. Queue
	rabbit, err := queue.NewRabbitMQ(cfg.AMQPURL)
	if err != nil {
		log.Fatal("connect rabbitmq", zap.Error(err))
	}
	defer rabbit.Close()

	consumeCh, err := rabbit.Conn.Channel()
	if err != nil {
		log.Fatal("open consumer channel", zap.Error(err))
	}
	defer consumeCh.Close()

	producer := queue.NewProducer(rabbit.Ch)
	sender := mail.NewEmailSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailFrom, cfg.ConsoleURL)
	consumer := queue.NewWorker(consumeCh, sender, log.Named("worker"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(ctx, queue.QueueName)
	})

	// 3. Dashboard poller feeding the scheduler
	scheduler := usecase.NewFollowUpScheduler(producer, cfg.ReminderRecipient, cfg.ReminderLookahead, log.Named("scheduler"))
	poller := worker.NewDashboardPoller(leads, log.Named("dashboard"),
		worker.WithInterval(cfg.PollInterval),
		worker.WithAssignee(cfg.ReminderAssignee),
		worker.WithListener(func(ctx context.Context, u worker.Update) {
			if u.Err != nil {
				if crm.IsUnauthorized(u.Err) {
					log.Info("session expired, signing in again")
					if err := login(ctx); err != nil {
						log.Error("re-login", zap.Error(err))
					}
				}
				return
			}
			if !u.Fresh {
				return
			}
			if _, err := scheduler.Schedule(ctx, u.Stats); err != nil {
				log.Error("schedule follow-ups", zap.Error(err))
			}
		}),
	)
	if err := poller.Mount(ctx); err != nil {
		log.Fatal("mount poller", zap.Error(err))
	}

	// 4. Metrics and health
	rabbitCheck := func(context.Context) error {
		if rabbit.Conn.IsClosed() {
			return errors.New("connection closed")
		}
		return nil
	}
	health := handlers.NewHealthHandler("1.0.0", map[string]handlers.HealthCheck{
		"crm":      client.Health,
		"rabbitmq": rabbitCheck,
	})
	r := chi.NewRouter()
	r.Get("/healthz", health.Handle)
	r.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		poller.Unmount()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("reminder daemon running",
		zap.String("recipient", cfg.ReminderRecipient),
		zap.String("assignee", cfg.ReminderAssignee),
		zap.Duration("lookahead", cfg.ReminderLookahead),
	)
	if err := g.Wait(); err != nil {
		log.Error("reminder daemon stopped", zap.Error(err))
	}
}
