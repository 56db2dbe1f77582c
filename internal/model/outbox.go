package model

import "time"

// RequestInit carries the options needed to replay a request.
type RequestInit struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// OutboxRecord is a stored outbox row. Init is opaque to the store and may be sealed.
type OutboxRecord struct {
	ID        int64
	URL       string
	Init      []byte
	CreatedAt time.Time
}

// OutboxEntry is a decoded outbox row.
type OutboxEntry struct {
	ID        int64       `json:"id"`
	URL       string      `json:"url"`
	Init      RequestInit `json:"init"`
	CreatedAt time.Time   `json:"created_at"`
}

// CachedResponse is a response stored in a named asset cache.
type CachedResponse struct {
	Cache       string    `json:"cache"`
	Key         string    `json:"key"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"-"`
	StoredAt    time.Time `json:"stored_at"`
}
