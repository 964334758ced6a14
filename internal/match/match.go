// Package match decides whether a scanned fingerprint appears in known breach
// data. It is a pluggable collaborator: the registry only depends on the
// Matcher interface.
package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"sync"

	"breachscan/internal/fingerprint"
	"breachscan/internal/kvstore"
	"breachscan/internal/scan/models"
	"breachscan/pkg/sentinel"
)

// Matcher is the breach-match collaborator.
type Matcher interface {
	Match(ctx context.Context, encryptedFingerprint string) (models.MatchResult, error)
}

// CorpusKey is where a seeded corpus lives in the key-value store.
const CorpusKey = "breach_corpus"

// CorpusEntry is one known-breached fingerprint digest.
type CorpusEntry struct {
	Digest string `json:"digest"`
	Source string `json:"source"`
}

// Corpus matches fingerprints against a fixed set of breached digests. A
// fingerprint whose blind-index digest is absent from the corpus is safe;
// severity for hits is derived deterministically from the digest so repeated
// scans of the same input agree.
type Corpus struct {
	mu      sync.RWMutex
	entries map[string]string // digest -> source label
}

func NewCorpus(entries []CorpusEntry) *Corpus {
	c := &Corpus{entries: make(map[string]string, len(entries))}
	for _, e := range entries {
		if e.Digest != "" {
			c.entries[e.Digest] = e.Source
		}
	}
	return c
}

// LoadCorpusFile reads a JSON array of corpus entries from disk.
func LoadCorpusFile(path string) (*Corpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	var entries []CorpusEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", path, err)
	}
	return NewCorpus(entries), nil
}

// LoadCorpusStore reads a seeded corpus from the key-value store. A missing
// or unavailable corpus yields an empty matcher, not an error: scans then
// resolve safe until data is seeded.
func LoadCorpusStore(ctx context.Context, store kvstore.Store) (*Corpus, error) {
	if !store.IsAvailable(ctx) {
		return NewCorpus(nil), nil
	}
	raw, err := store.Get(ctx, CorpusKey)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrUnavailable) {
		return NewCorpus(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	var entries []CorpusEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse stored corpus: %w", err)
	}
	return NewCorpus(entries), nil
}

func (c *Corpus) Match(_ context.Context, encryptedFingerprint string) (models.MatchResult, error) {
	digest, ok := fingerprint.DigestOf(encryptedFingerprint)
	if !ok {
		return models.MatchResult{}, fmt.Errorf("fingerprint has no digest segment")
	}

	c.mu.RLock()
	source, hit := c.entries[digest]
	c.mu.RUnlock()

	if !hit {
		return models.MatchResult{Breached: false}, nil
	}
	if source == "" {
		source = "Known breach database"
	}
	return models.MatchResult{
		Breached: true,
		Severity: severityOf(digest),
		Source:   source,
	}, nil
}

// Add registers additional breached digests at runtime.
func (c *Corpus) Add(entries ...CorpusEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if e.Digest != "" {
			c.entries[e.Digest] = e.Source
		}
	}
}

// Len reports how many digests the corpus holds.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// severityOf maps a digest onto [0,99] with FNV-1a so the score is stable
// across processes.
func severityOf(digest string) int {
	h := fnv.New32a()
	h.Write([]byte(digest))
	return int(h.Sum32() % 100)
}
