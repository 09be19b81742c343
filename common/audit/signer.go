// Package audit authenticates events exchanged between terminals.
package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// EventSigner computes HMAC-SHA256 signatures with a shared secret.
type EventSigner struct {
	secretKey []byte
}

func NewEventSigner(secretKey string) *EventSigner {
	return &EventSigner{
		secretKey: []byte(secretKey),
	}
}

// Sign returns the hex signature of an event. Every part is length
// prefixed, so different field splits never sign the same bytes.
func (s *EventSigner) Sign(eventID string, timestamp time.Time, origin string, data []byte) string {
	h := hmac.New(sha256.New, s.secretKey)
	parts := [][]byte{
		[]byte(eventID),
		[]byte(timestamp.UTC().Format(time.RFC3339Nano)),
		[]byte(origin),
		data,
	}
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		h.Write(size[:])
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches the event, in constant time.
func (s *EventSigner) Verify(eventID string, timestamp time.Time, origin string, data []byte, signature string) bool {
	expected := s.Sign(eventID, timestamp, origin, data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
