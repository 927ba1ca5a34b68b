// Package flowstore persists the node's single active Flow and the
// job-address-to-flow-ID mapping across restarts, the Flow Store
// component from spec section 4.4.
package flowstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meridian-network/node/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketFlows   = []byte("flows")
	bucketJobFlow = []byte("job_flow")
)

// BoltStore implements the Flow Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("flowstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketFlows, bucketJobFlow} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("flowstore: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0700)
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Save persists f, upserting by f.ID.
func (s *BoltStore) Save(f types.Flow) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("flowstore: marshal flow %s: %w", f.ID, err)
		}
		return tx.Bucket(bucketFlows).Put([]byte(f.ID), data)
	})
}

// Get loads the Flow recorded under id. ok is false if no such flow
// has ever been saved.
func (s *BoltStore) Get(id string) (flow types.Flow, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFlows).Get([]byte(id))
		if data == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(data, &flow)
	})
	return flow, ok, err
}

// Delete removes the Flow recorded under id, once it has settled.
func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFlows).Delete([]byte(id))
	})
}

// BindJobFlow records which flow ID a job address maps to.
// Monotonic: once a job address has a flow bound, BindJobFlow refuses
// to rebind it to a different flow ID, the invariant spec section 3
// calls for — a job is claimed by exactly one flow for the node's
// lifetime.
func (s *BoltStore) BindJobFlow(jobAddr, flowID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobFlow)
		existing := b.Get([]byte(jobAddr))
		if existing != nil && string(existing) != flowID {
			return fmt.Errorf("flowstore: job %s already bound to flow %s, refusing to rebind to %s", jobAddr, existing, flowID)
		}
		return b.Put([]byte(jobAddr), []byte(flowID))
	})
}

// FlowIDForJob returns the flow ID bound to jobAddr, if any.
func (s *BoltStore) FlowIDForJob(jobAddr string) (flowID string, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobFlow).Get([]byte(jobAddr))
		if data == nil {
			return nil
		}
		ok = true
		flowID = string(data)
		return nil
	})
	return flowID, ok, err
}
