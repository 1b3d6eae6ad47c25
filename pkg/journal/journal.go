package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEffects = []byte("effects")

// Entry records which side effects a stream message has already caused.
// The dispatcher consults it before creating records or upserting the
// registry so a redelivered message cannot duplicate effects.
type Entry struct {
	MessageID        string    `json:"message_id"`
	Action           string    `json:"action"`
	AgentName        string    `json:"agent_name"`
	BuildID          string    `json:"build_id,omitempty"`
	DeploymentID     string    `json:"deployment_id,omitempty"`
	RegistryUpserted bool      `json:"registry_upserted"`
	Completed        bool      `json:"completed"`
	FirstSeen        time.Time `json:"first_seen"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Journal is a bbolt-backed effect journal keyed by stream message ID
type Journal struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the journal at the given path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEffects)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// Get returns the entry for a message, or nil when the message has never
// been seen
func (j *Journal) Get(messageID string) (*Entry, error) {
	var entry *Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEffects).Get([]byte(messageID))
		if data == nil {
			return nil
		}
		entry = &Entry{}
		return json.Unmarshal(data, entry)
	})
	return entry, err
}

// Put upserts an entry, stamping FirstSeen on the first write and
// UpdatedAt on every write
func (j *Journal) Put(entry *Entry) error {
	now := time.Now().UTC()
	if entry.FirstSeen.IsZero() {
		entry.FirstSeen = now
	}
	entry.UpdatedAt = now

	return j.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketEffects).Put([]byte(entry.MessageID), data)
	})
}

// Delete removes an entry
func (j *Journal) Delete(messageID string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEffects).Delete([]byte(messageID))
	})
}

// List returns every entry in message-ID order
func (j *Journal) List() ([]*Entry, error) {
	var entries []*Entry
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEffects).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	return entries, err
}

// Prune removes completed entries last touched before the cutoff and
// returns how many were removed. Incomplete entries are never pruned:
// they mark commands that died mid-flight and deserve inspection.
func (j *Journal) Prune(cutoff time.Time) (int, error) {
	pruned := 0
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEffects)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if !entry.Completed || !entry.UpdatedAt.Before(cutoff) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}

// Counts reports how many entries are still open and how many completed,
// feeding the journal gauge
func (j *Journal) Counts() (int, int, error) {
	open, completed := 0, 0
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEffects).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.Completed {
				completed++
			} else {
				open++
			}
			return nil
		})
	})
	return open, completed, err
}
