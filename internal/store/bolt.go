//go:build bolt

package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/inovacc/gitsafe/internal/model"
	"go.etcd.io/bbolt"
)

// DatabaseFile is the history database name inside the data directory.
const DatabaseFile = "gitsafe.bolt"

// runs -> repository id -> (started_at nanos | run id) -> SyncRun JSON
const boltBucketRuns = "runs"

// Bolt keeps sync runs in a BoltDB file.
type Bolt struct {
	storage *bbolt.DB
}

// NewBolt opens or creates the database at path.
func NewBolt(path string) (*Bolt, error) {
	instance, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := instance.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucketRuns))
		return err
	}); err != nil {
		_ = instance.Close()

		return nil, err
	}

	return &Bolt{storage: instance}, nil
}

func openHistory(dataDir string) (History, error) {
	return NewBolt(filepath.Join(dataDir, DatabaseFile))
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.storage.Close()
}

// RecordRun stores run under its repository.
func (b *Bolt) RecordRun(_ context.Context, run *model.SyncRun) error {
	if err := run.Validate(); err != nil {
		return err
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	return b.storage.Update(func(tx *bbolt.Tx) error {
		repo, err := tx.Bucket([]byte(boltBucketRuns)).CreateBucketIfNotExists([]byte(run.RepositoryID))
		if err != nil {
			return err
		}

		return repo.Put(runKey(run), data)
	})
}

// ListRuns returns up to limit runs, newest first.
func (b *Bolt) ListRuns(_ context.Context, repositoryID string, limit int) ([]model.SyncRun, error) {
	limit = normalizeLimit(limit)

	var out []model.SyncRun

	err := b.storage.View(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(boltBucketRuns))

		if repositoryID != "" {
			repo := runs.Bucket([]byte(repositoryID))
			if repo == nil {
				return nil
			}

			return collectNewest(repo, limit, &out)
		}

		return runs.ForEach(func(k, _ []byte) error {
			repo := runs.Bucket(k)
			if repo == nil {
				return nil
			}

			return collectNewest(repo, limit, &out)
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// DeleteRuns drops the repository's bucket.
func (b *Bolt) DeleteRuns(_ context.Context, repositoryID string) error {
	return b.storage.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket([]byte(boltBucketRuns)).DeleteBucket([]byte(repositoryID))
		if err == bbolt.ErrBucketNotFound {
			return nil
		}

		return err
	})
}

func collectNewest(bucket *bbolt.Bucket, limit int, out *[]model.SyncRun) error {
	c := bucket.Cursor()

	n := 0
	for k, v := c.Last(); k != nil && n < limit; k, v = c.Prev() {
		var run model.SyncRun
		if err := json.Unmarshal(v, &run); err != nil {
			return err
		}

		*out = append(*out, run)
		n++
	}

	return nil
}

// runKey sorts runs chronologically inside a repository bucket.
func runKey(run *model.SyncRun) []byte {
	key := make([]byte, 8, 8+len(run.ID))
	binary.BigEndian.PutUint64(key, uint64(run.StartedAt.UnixNano()))

	return append(key, run.ID...)
}
