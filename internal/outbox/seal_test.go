package outbox

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealRoundTrip(t *testing.T) {
	s, err := NewSealer("passphrase")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	blob, err := s.Seal([]byte("hello"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !isSealed(blob) {
		t.Error("sealed blob should carry the magic prefix")
	}
	got, err := s.Open(blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("open = %q, want hello", got)
	}
}

func TestOpenAcrossInstances(t *testing.T) {
	a, _ := NewSealer("shared")
	b, _ := NewSealer("shared")

	blob, _ := a.Seal([]byte("data"))
	got, err := b.Open(blob)
	if err != nil {
		t.Fatalf("open with second instance: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("open = %q", got)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	a, _ := NewSealer("right")
	b, _ := NewSealer("wrong")

	blob, _ := a.Seal([]byte("data"))
	if _, err := b.Open(blob); !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if _, err := b.Open([]byte(`{"method":"POST"}`)); !errors.Is(err, ErrOpen) {
		t.Errorf("plain json err = %v, want ErrOpen", err)
	}
}
