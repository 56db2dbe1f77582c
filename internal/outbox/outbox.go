// Package outbox queues failed write requests and replays them when
// connectivity returns. Delivery is at-least-once: a replay that reaches the
// server but fails to delete locally is sent again on the next drain.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/debuck1718/smartstudent/internal/model"
)

// ErrNotFound is returned by Abandon for an unknown id.
var ErrNotFound = errors.New("outbox entry not found")

// KeyValueStore is the durable backing store. Ids are assigned by the store.
type KeyValueStore interface {
	Add(ctx context.Context, url string, init []byte) (int64, error)
	All(ctx context.Context) ([]model.OutboxRecord, error)
	Get(ctx context.Context, id int64) (*model.OutboxRecord, error)
	Delete(ctx context.Context, id int64) error
}

// Doer performs replay requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures an Outbox.
type Config struct {
	// BaseURL resolves relative entry URLs at replay time.
	BaseURL string
	// Passphrase seals request inits at rest when set.
	Passphrase string
	// Concurrency bounds parallel replays during a drain.
	Concurrency int
}

// DrainResult summarizes one drain.
type DrainResult struct {
	Attempted int `json:"attempted"`
	Replayed  int `json:"replayed"`
	Failed    int `json:"failed"`
}

type Outbox struct {
	store       KeyValueStore
	client      Doer
	base        *url.URL
	sealer      *Sealer
	concurrency int
	logger      *slog.Logger
}

// New creates an outbox over store.
func New(cfg Config, store KeyValueStore, client Doer, logger *slog.Logger) (*Outbox, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	o := &Outbox{
		store:       store,
		client:      client,
		base:        base,
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
	if cfg.Passphrase != "" {
		o.sealer, err = NewSealer(cfg.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("create sealer: %w", err)
		}
	}
	return o, nil
}

// Enqueue durably appends a request. Storage errors are returned to the caller.
func (o *Outbox) Enqueue(ctx context.Context, rawURL string, init model.RequestInit) (int64, error) {
	if strings.TrimSpace(rawURL) == "" {
		return 0, fmt.Errorf("enqueue: empty url")
	}
	if init.Method == "" {
		init.Method = http.MethodGet
	}
	blob, err := o.encode(init)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	id, err := o.store.Add(ctx, rawURL, blob)
	if err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	o.logger.Info("queued request", "id", id, "method", init.Method, "url", rawURL)
	return id, nil
}

// List returns every pending entry that can be decoded.
func (o *Outbox) List(ctx context.Context) ([]model.OutboxEntry, error) {
	records, err := o.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	entries := make([]model.OutboxEntry, 0, len(records))
	for _, r := range records {
		e, err := o.decode(r)
		if err != nil {
			o.logger.Warn("undecodable outbox entry", "id", r.ID, "error", err)
			continue
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// Abandon deletes an entry without replaying it.
func (o *Outbox) Abandon(ctx context.Context, id int64) error {
	r, err := o.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("abandon %d: %w", id, err)
	}
	if r == nil {
		return fmt.Errorf("abandon %d: %w", id, ErrNotFound)
	}
	if err := o.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("abandon %d: %w", id, err)
	}
	o.logger.Info("abandoned request", "id", id, "url", r.URL)
	return nil
}

// Drain replays every entry. Each entry succeeds or fails on its own; failed
// entries stay for the next drain. Only a failure to read the store is
// returned as an error.
func (o *Outbox) Drain(ctx context.Context) (DrainResult, error) {
	records, err := o.store.All(ctx)
	if err != nil {
		return DrainResult{}, fmt.Errorf("drain: %w", err)
	}

	ok := make([]bool, len(records))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, r := range records {
		g.Go(func() error {
			if err := o.replay(ctx, r); err != nil {
				o.logger.Debug("replay failed", "id", r.ID, "url", r.URL, "error", err)
				return nil
			}
			if err := o.store.Delete(ctx, r.ID); err != nil {
				o.logger.Warn("delete replayed entry", "id", r.ID, "error", err)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	res := DrainResult{Attempted: len(records)}
	for _, v := range ok {
		if v {
			res.Replayed++
		}
	}
	res.Failed = res.Attempted - res.Replayed
	if res.Attempted > 0 {
		o.logger.Info("drained outbox", "attempted", res.Attempted, "replayed", res.Replayed, "failed", res.Failed)
	}
	return res, nil
}

func (o *Outbox) replay(ctx context.Context, r model.OutboxRecord) error {
	e, err := o.decode(r)
	if err != nil {
		return err
	}
	target, err := o.base.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	var body io.Reader
	if e.Init.Body != "" {
		body = strings.NewReader(e.Init.Body)
	}
	req, err := http.NewRequestWithContext(ctx, e.Init.Method, target.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range e.Init.Headers {
		req.Header.Set(k, v)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// 4xx counts as delivered.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

func (o *Outbox) encode(init model.RequestInit) ([]byte, error) {
	data, err := json.Marshal(init)
	if err != nil {
		return nil, fmt.Errorf("marshal init: %w", err)
	}
	if o.sealer == nil {
		return data, nil
	}
	return o.sealer.Seal(data)
}

func (o *Outbox) decode(r model.OutboxRecord) (*model.OutboxEntry, error) {
	data := r.Init
	if isSealed(data) {
		if o.sealer == nil {
			return nil, ErrSealed
		}
		var err error
		if data, err = o.sealer.Open(data); err != nil {
			return nil, err
		}
	}
	var init model.RequestInit
	if err := json.Unmarshal(data, &init); err != nil {
		return nil, fmt.Errorf("unmarshal init: %w", err)
	}
	return &model.OutboxEntry{ID: r.ID, URL: r.URL, Init: init, CreatedAt: r.CreatedAt}, nil
}
