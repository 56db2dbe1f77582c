package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/debuck1718/smartstudent/internal/model"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// ErrBadKey is returned for an application server key that is not an
// uncompressed P-256 point.
var ErrBadKey = errors.New("invalid application server key")

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// Service sends push payloads to subscriptions. The agent's push endpoint
// consumes exactly these payloads.
type Service struct {
	cfg        Config
	httpClient *http.Client
}

// NewService creates a new push service with VAPID keys.
func NewService(cfg Config, httpClient *http.Client) *Service {
	if cfg.Subscriber == "" {
		cfg.Subscriber = "mailto:noreply@smartstudent.app"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Service{cfg: cfg, httpClient: httpClient}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	return s.cfg.VAPIDPublicKey
}

// Send delivers payload to sub.
func (s *Service) Send(ctx context.Context, sub *webpush.Subscription, payload model.PushPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, sub, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		Subscriber:      s.cfg.Subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.FillBytes(make([]byte, 32)))

	return publicKey, privateKey, nil
}

// DecodeApplicationServerKey decodes a VAPID public key served by the
// backend. Standard and URL-safe base64, padded or not, are accepted.
func DecodeApplicationServerKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.StdEncoding} {
		if raw, err = enc.DecodeString(s); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		return nil, fmt.Errorf("%w: want 65-byte uncompressed point, got %d bytes", ErrBadKey, len(raw))
	}
	return raw, nil
}

// ParseSubscription decodes a subscription as produced by PushSubscription.toJSON.
func ParseSubscription(data []byte) (*webpush.Subscription, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription: %w", err)
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return nil, errors.New("parse subscription: endpoint, p256dh and auth are required")
	}
	return &sub, nil
}

// FileSubscriber supplies a subscription exported from a browser as JSON.
// The application server key is not checked against it.
type FileSubscriber struct {
	Path string
}

func (f FileSubscriber) Subscribe(_ context.Context, _ []byte) (*webpush.Subscription, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read subscription: %w", err)
	}
	return ParseSubscription(data)
}
