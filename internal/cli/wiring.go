package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/debuck1718/smartstudent/internal/api"
	"github.com/debuck1718/smartstudent/internal/dashboard"
	"github.com/debuck1718/smartstudent/internal/database"
	"github.com/debuck1718/smartstudent/internal/outbox"
	"github.com/debuck1718/smartstudent/internal/push"
	"github.com/debuck1718/smartstudent/internal/store"
	"github.com/debuck1718/smartstudent/internal/websocket"
)

func newAPIClient() (*api.Client, error) {
	client, err := api.NewClient(env.cfg.BaseURL(), nil, env.logger.With("component", "api"))
	if err != nil {
		return nil, err
	}
	if env.cfg.SessionCookie != "" {
		if err := client.SetSessionCookie(env.cfg.SessionCookie); err != nil {
			return nil, err
		}
	}
	return client, nil
}

func openDB() (*sql.DB, error) {
	db, err := database.Open(env.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newOutbox(db *sql.DB, client *http.Client) (*outbox.Outbox, error) {
	return outbox.New(outbox.Config{
		BaseURL:     env.cfg.BaseURL(),
		Passphrase:  env.cfg.OutboxPassphrase,
		Concurrency: env.cfg.OutboxConcurrency,
	}, store.NewOutboxStore(db), client, env.logger.With("component", "outbox"))
}

// newController builds a dashboard controller connected to the local agent.
// subscriptionPath, when set, enables the push handshake. ob, when set,
// takes failed writes while the agent is not running.
func newController(subscriptionPath string, ob dashboard.Outbox) (*dashboard.Controller, error) {
	client, err := newAPIClient()
	if err != nil {
		return nil, err
	}
	dial := func(ctx context.Context) (dashboard.Messenger, error) {
		conn, err := websocket.Dial(ctx, env.cfg.AgentURL())
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	var sub dashboard.Subscriber
	if subscriptionPath != "" {
		sub = push.FileSubscriber{Path: subscriptionPath}
	}
	cfg := dashboard.Config{Timezone: env.cfg.Timezone, Outbox: ob}
	if cfg.Timezone == "" {
		cfg.Timezone = os.Getenv("TZ")
	}
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		cfg.Location = loc
	}
	return dashboard.New(cfg, client, dial, sub, consoleToaster{}, env.logger.With("component", "dashboard")), nil
}
