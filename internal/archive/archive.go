// Package archive keeps a copy of every mapping log produced by the CLI.
//
// Each completed run is stored as one record keyed by a ULID, so records
// sort by creation time. The archive is write-only from the pipeline's point
// of view: nothing in it is read back into a later run.
//
// Two implementations are provided:
//   - memoryStore: in-memory only, used by tests.
//   - boltStore: embedded key-value store (bbolt), used when --archive is set.
package archive

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	bolt "go.etcd.io/bbolt"

	"notes-anonymizer/internal/logger"
)

// Entry is one archived replacement.
type Entry struct {
	Category string `json:"category"`
	ID       string `json:"id"`
	Original string `json:"original"`
}

// Run is one archived anonymization run.
type Run struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	InputFile string    `json:"inputFile"`
	Entries   []Entry   `json:"entries"`
}

// CountByCategory returns the number of entries per category tag.
func (r Run) CountByCategory() map[string]int {
	out := make(map[string]int)
	for _, e := range r.Entries {
		out[e.Category]++
	}
	return out
}

// Store is the run archive interface.
// All implementations must be safe for concurrent use.
type Store interface {
	// Record stores run and returns its id. An empty run.ID is assigned a
	// new ULID; a zero CreatedAt is set to the current time.
	Record(run Run) (string, error)

	// Runs returns every archived run, oldest first.
	Runs() ([]Run, error)

	// Close releases any resources held by the store (e.g. file handles).
	Close() error
}

// idSource issues monotonic ULIDs. ulid.MonotonicEntropy is not safe for
// concurrent use, hence the mutex.
type idSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDSource() *idSource {
	return &idSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *idSource) next(t time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

func (s *idSource) prepare(run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.ID != "" {
		return nil
	}
	id, err := s.next(run.CreatedAt)
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

// --- memoryStore ---------------------------------------------------------

type memoryStore struct {
	mu   sync.RWMutex
	ids  *idSource
	runs map[string]Run
}

func newMemoryStore() Store {
	return &memoryStore{ids: newIDSource(), runs: make(map[string]Run)}
}

func (s *memoryStore) Record(run Run) (string, error) {
	if err := s.ids.prepare(&run); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return run.ID, nil
}

func (s *memoryStore) Runs() ([]Run, error) {
	s.mu.RLock()
	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

// --- boltStore -----------------------------------------------------------

const runsBucket = "runs"

// boltStore is a Store backed by an embedded bbolt database. The database
// file is created at the given path if it does not exist.
type boltStore struct {
	db  *bolt.DB
	ids *idSource
}

// Open opens (or creates) the bbolt archive at path and ensures the bucket
// exists. The file holds original PII, so it is created owner-only.
// log may be nil.
func Open(path string, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create archive bucket: %w", err)
	}

	log.Infof("opened", "%s", path)
	return &boltStore{db: db, ids: newIDSource()}, nil
}

func (s *boltStore) Record(run Run) (string, error) {
	if err := s.ids.prepare(&run); err != nil {
		return "", err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		if b == nil {
			return fmt.Errorf("bucket %q not found", runsBucket)
		}
		return b.Put([]byte(run.ID), data)
	}); err != nil {
		return "", fmt.Errorf("store run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

func (s *boltStore) Runs() ([]Run, error) {
	var out []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		if b == nil {
			return nil
		}
		// ULID keys sort lexically by time, so cursor order is creation order.
		return b.ForEach(func(k, v []byte) error {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}
