package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/notify"
	"github.com/example/tablebook/internal/sweeper"
	"github.com/example/tablebook/internal/web"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	var f storeFlags
	var origins string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the reservation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireCookieKeys(); err != nil {
				return err
			}
			l := logger.Default()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, cfg, f, l)
			if err != nil {
				return err
			}
			defer a.Close()

			dispatcher, closeChannels, err := newDispatcher(cfg, l)
			if err != nil {
				return err
			}
			dispatcher.Start()
			defer closeChannels()
			defer dispatcher.Close()

			svc := a.service(dispatcher)

			if cfg.AutoConfirmAfter > 0 {
				sw := &sweeper.Sweeper{
					Booking:  svc,
					Interval: cfg.SweepInterval,
					After:    cfg.AutoConfirmAfter,
					Logger:   l,
				}
				go func() { _ = sw.Run(ctx) }()
			}

			ws := web.NewServer(auth.NewStore(a.owners, cfg.CookieHashKey, cfg.CookieBlockKey), svc, l)
			ws.AllowedOrigins = splitCSV(origins)
			if err := web.Start(ctx, cfg.ListenAddr, ws.Routes(), l); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&f.migrate, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	cmd.Flags().StringVar(&f.store, "store", "", "reservation store: postgres or memory (default from STORE)")
	cmd.Flags().StringVar(&f.seed, "seed", "", "JSON file of restaurants (and owners) to load at startup")
	cmd.Flags().StringVar(&origins, "cors-origins", "", "comma-separated allowed CORS origins (default any)")
	return cmd
}

// newDispatcher wires each configured channel. The returned func closes
// channel clients after the dispatcher has drained.
func newDispatcher(cfg config.Config, l *logger.Logger) (*notify.Dispatcher, func(), error) {
	opts := notify.Options{BaseURL: cfg.BaseURL}
	closeFn := func() {}

	if cfg.SendGridAPIKey != "" {
		m, err := notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.SendGridFromName)
		if err != nil {
			return nil, nil, err
		}
		opts.Mailer = m
	}
	if cfg.TwilioAccountSID != "" {
		s, err := notify.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			return nil, nil, err
		}
		opts.SMS = s
	}
	if cfg.KafkaBroker != "" {
		p := notify.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		opts.Events = p
		closeFn = func() {
			if err := p.Close(); err != nil {
				l.LogErrorf("type: kafka, op: close, error: %v", err)
			}
		}
	}
	return notify.NewDispatcher(l, opts), closeFn, nil
}
