package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

type fingerprintDoc struct {
	Session   Snapshot       `json:"session"`
	Exchanges []ChatExchange `json:"exchanges"`
}

// Fingerprint hashes the RFC 8785 canonical JSON of everything the score can
// see: the snapshot and exchanges up to the horizon. Once the session is
// locked the fingerprint no longer changes, whatever is appended afterwards.
func Fingerprint(snap Snapshot, exchanges []ChatExchange, now time.Time) (string, error) {
	h := snap.Horizon(now)

	doc := fingerprintDoc{Session: snap, Exchanges: []ChatExchange{}}
	doc.Session.Events = make([]Event, 0, len(snap.Events))
	for _, e := range snap.Events {
		if !e.Time.After(h) {
			doc.Session.Events = append(doc.Session.Events, e)
		}
	}
	for _, c := range exchanges {
		if !c.Time.After(h) {
			doc.Exchanges = append(doc.Exchanges, c)
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint document: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint document: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
