package database

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"github.com/mavleo96/rocket/internal/checker"
	"go.etcd.io/bbolt"
)

var verdictsBucket = []byte("verdicts")

// Database stores the verdicts of a run, keyed by iteration
type Database struct {
	db *bbolt.DB
}

// InitDB opens or creates the database at dbPath with a "verdicts" bucket
func (d *Database) InitDB(dbPath string) (err error) {
	boltDB, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return err
	}
	d.db = boltDB

	err = d.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(verdictsBucket)
		return err
	})
	if err != nil {
		d.db.Close()
		return err
	}
	return nil
}

func iterationKey(iteration int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(iteration))
	return key
}

// PutVerdict stores v, replacing an earlier verdict of the same iteration
func (d *Database) PutVerdict(v checker.Verdict) error {
	if v.Iteration < 0 {
		return errors.New("iteration must not be negative")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(verdictsBucket)
		if b == nil {
			return errors.New("verdicts bucket not found")
		}
		return b.Put(iterationKey(v.Iteration), data)
	})
}

// Verdict returns the verdict of one iteration
func (d *Database) Verdict(iteration int) (checker.Verdict, bool, error) {
	var v checker.Verdict
	found := false
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(verdictsBucket)
		if b == nil {
			return errors.New("verdicts bucket not found")
		}
		data := b.Get(iterationKey(iteration))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &v)
	})
	return v, found, err
}

// Verdicts returns every stored verdict in iteration order
func (d *Database) Verdicts() ([]checker.Verdict, error) {
	verdicts := make([]checker.Verdict, 0)
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(verdictsBucket)
		if b == nil {
			return errors.New("verdicts bucket not found")
		}
		return b.ForEach(func(_, data []byte) error {
			var v checker.Verdict
			if err := json.Unmarshal(data, &v); err != nil {
				return err
			}
			verdicts = append(verdicts, v)
			return nil
		})
	})
	return verdicts, err
}

// Close closes the database
func (d *Database) Close() error {
	return d.db.Close()
}
