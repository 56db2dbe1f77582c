package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/debuck1718/smartstudent/internal/agent"
	"github.com/debuck1718/smartstudent/internal/cache"
	"github.com/debuck1718/smartstudent/internal/middleware"
	"github.com/debuck1718/smartstudent/internal/notify"
	"github.com/debuck1718/smartstudent/internal/store"
	"github.com/debuck1718/smartstudent/internal/websocket"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background agent (asset cache, outbox, push relay)",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger := env.cfg, env.logger

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	assets, err := cache.NewManager(cache.Config{Origin: cfg.Origin()}, store.NewAssetStore(db), client.HTTPClient(), logger.With("component", "cache"))
	if err != nil {
		return err
	}
	queue, err := newOutbox(db, client.HTTPClient())
	if err != nil {
		return err
	}

	hub := websocket.NewHub(logger.With("component", "hub"))
	var bridge notify.NativeBridge
	if cfg.NativeBridgeURL != "" {
		bridge = notify.NewHTTPBridge(cfg.NativeBridgeURL, client.HTTPClient())
	}
	composer := notify.NewComposer(notify.NewPageNotifier(hub, logger.With("component", "notify")), bridge, logger.With("component", "notify"))

	ag := agent.New(agent.Config{
		RefreshInterval:      cfg.RefreshInterval,
		ConnectivityInterval: cfg.ConnectivityInterval,
	}, assets, queue, composer, hub, client, logger.With("component", "agent"))
	hub.OnMessage(ag.HandleMessage)

	if err := ag.Start(ctx); err != nil {
		return err
	}
	defer ag.Stop()

	limiter := middleware.NewRateLimiter()
	go limiter.RunCleanup(ctx, time.Minute)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           ag.Router(websocket.HandleWebSocket(hub), limiter),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		printHeader("SmartStudent agent")
		fmt.Printf("Listening on http://%s (API %s)\n", cfg.Addr, cfg.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	fmt.Println("\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
