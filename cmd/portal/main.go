// Command portal is the command-line hospital portal. It signs in as an
// admin, doctor or patient against the hospital API and keeps its session
// and ticker in a local file or a shared Redis store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"healthnexus-portal/internal/logging"
	"healthnexus-portal/internal/portal"
	"healthnexus-portal/internal/session"
	"healthnexus-portal/internal/store"
	"healthnexus-portal/internal/ticker"
)

const usage = `usage: portal [flags] <command> [args]

commands:
  login <admin|doctor|patient> <email> <password>
  logout
  whoami
  appointments
  pending
  status <appointmentId> <status>
  cancel <appointmentId>
  notifications
  feed
  ticker list|add <notice|news> <low|medium|high> <text>|rm <id>|from-news <newsId>|watch
  impersonate <doctor|patient> <id>
  stop-impersonating
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	opts, err := ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := logging.New(opts.LogLevel, opts.LogFormat)
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, logger, os.Stdout)
	if err != nil {
		logger.WithError(err).Fatal("Error opening portal store")
	}
	defer a.Close()

	if err := a.Run(ctx, opts.Args); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

// watcher relays writes made by other processes onto the bus.
type watcher interface {
	Watch(ctx context.Context, d store.Dispatcher) error
}

// app bundles what every command needs.
type app struct {
	kv      store.Store
	watcher watcher
	redis   *store.RedisStore
	bus     *store.Bus
	session *session.Session
	client  *portal.Client
	tickers *ticker.Store
	notes   *portal.Notifications
	log     *logrus.Logger
	out     io.Writer
}

func newApp(ctx context.Context, opts Options, logger *logrus.Logger, out io.Writer) (*app, error) {
	a := &app{bus: store.NewBus(), log: logger, out: out}

	if opts.RedisURL != "" {
		rs, err := store.NewRedisStore(ctx, opts.RedisURL, opts.Channel, logger)
		if err != nil {
			return nil, err
		}
		a.kv, a.watcher, a.redis = rs, rs, rs
	} else {
		fs, err := store.NewFileStore(opts.StorePath)
		if err != nil {
			return nil, err
		}
		a.kv, a.watcher = fs, fs
	}

	a.session = session.New(a.kv, logger)
	a.client = portal.NewClient(opts.APIURL, a.session, logger)
	a.tickers = ticker.New(a.kv, a.bus, logger)
	a.notes = portal.NewNotifications(a.kv)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

// userMessage is the short text shown for a failed command.
func userMessage(err error) string {
	var apiErr *portal.APIError
	switch {
	case errors.Is(err, portal.ErrStatusUpdateFailed):
		return portal.ErrStatusUpdateFailed.Error()
	case errors.As(err, &apiErr):
		return apiErr.Msg
	}
	return err.Error()
}
