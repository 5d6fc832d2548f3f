// Package bolt is a BoltDB Storage.
package bolt

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Comcast/surface/control"
	"github.com/Comcast/surface/storage"

	bolt "go.etcd.io/bbolt"
)

// DefaultSurface is the bucket name when there's only one Surface.
var DefaultSurface = "controls"

type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s.Debug {
		log.Printf("BoltDB Storage."+format, args...)
	}
}

func (s *Storage) MakeSurface(ctx context.Context, sid string) error {
	s.logf("MakeSurface %s", sid)
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sid))
		return err
	})
}

func (s *Storage) RemSurface(ctx context.Context, sid string) error {
	s.logf("RemSurface %s", sid)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.DeleteBucket([]byte(sid))
	})
}

// GetSurface returns the Controls in id order.
func (s *Storage) GetSurface(ctx context.Context, sid string) ([]*control.Data, error) {
	s.logf("GetSurface %s", sid)
	ds := make([]*control.Data, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sid))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for id, bs := c.First(); id != nil; id, bs = c.Next() {
			var d control.Data
			if err := json.Unmarshal(bs, &d); err != nil {
				return err
			}
			d.Id = string(id)
			ds = append(ds, &d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logf("GetSurface %s found %d controls", sid, len(ds))

	if len(ds) == 0 {
		return nil, nil
	}

	return ds, nil
}

func (s *Storage) WriteState(ctx context.Context, sid string, cs []*storage.ControlState) error {
	if 0 == len(cs) {
		return nil
	}

	vals := make(map[string][]byte, len(cs))

	for _, c := range cs {
		if c.Data == nil {
			continue
		}
		id := c.Id
		if c.Deleted {
			vals[id] = nil
			continue
		}
		js, err := json.Marshal(c.Data)
		if err != nil {
			return err
		}
		s.logf("WriteState %s %s %s", sid, id, js)
		vals[id] = js
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(sid))
		if err != nil {
			return err
		}
		for id, bs := range vals {
			var (
				key = []byte(id)
				err error
			)
			if bs == nil {
				err = b.Delete(key)
			} else {
				err = b.Put(key, bs)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
