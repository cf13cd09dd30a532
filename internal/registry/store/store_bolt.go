package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"alpine/internal/platform/bolt"
	"alpine/internal/registry/models"
	"alpine/pkg/platform/sentinel"
)

const (
	usernameBucket = "identity_by_username"
	addressBucket  = "identity_by_address"
)

// Buckets lists the buckets BoltStore needs; pass them to bolt.Open.
var Buckets = []string{usernameBucket, addressBucket}

// BoltStore persists identities in two BoltDB buckets keyed by username and address.
type BoltStore struct {
	db *bolt.DB
}

func NewBolt(db *bolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) FindByUsernameFold(ctx context.Context, username string) (*models.Identity, error) {
	want := strings.ToLower(username)
	var found *models.Identity
	err := s.db.View(ctx, func(tx *bbolt.Tx) error {
		b, err := bolt.Bucket(tx, usernameBucket)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if strings.ToLower(string(k)) != want {
				continue
			}
			identity, err := decodeIdentity(v)
			if err != nil {
				return err
			}
			found = identity
			return nil
		}
		return sentinel.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) FindByAddress(ctx context.Context, addr string) (*models.Identity, error) {
	var found *models.Identity
	err := s.db.View(ctx, func(tx *bbolt.Tx) error {
		b, err := bolt.Bucket(tx, addressBucket)
		if err != nil {
			return err
		}
		v := b.Get([]byte(addr))
		if v == nil {
			return sentinel.ErrNotFound
		}
		found, err = decodeIdentity(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) Save(ctx context.Context, identity *models.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	return s.db.Update(ctx, func(tx *bbolt.Tx) error {
		names, err := bolt.Bucket(tx, usernameBucket)
		if err != nil {
			return err
		}
		addrs, err := bolt.Bucket(tx, addressBucket)
		if err != nil {
			return err
		}
		if names.Get([]byte(identity.Username)) != nil {
			return sentinel.ErrAlreadyUsed
		}
		if addrs.Get([]byte(identity.Address)) != nil {
			return models.ErrAddressInUse
		}
		if err := names.Put([]byte(identity.Username), payload); err != nil {
			return fmt.Errorf("put identity by username: %w", err)
		}
		if err := addrs.Put([]byte(identity.Address), payload); err != nil {
			return fmt.Errorf("put identity by address: %w", err)
		}
		return nil
	})
}

// ListByUsername walks the username bucket, which BoltDB keeps in byte order.
func (s *BoltStore) ListByUsername(ctx context.Context) ([]*models.Identity, error) {
	var out []*models.Identity
	err := s.db.View(ctx, func(tx *bbolt.Tx) error {
		b, err := bolt.Bucket(tx, usernameBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			identity, err := decodeIdentity(v)
			if err != nil {
				return err
			}
			out = append(out, identity)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func decodeIdentity(v []byte) (*models.Identity, error) {
	var identity models.Identity
	if err := json.Unmarshal(v, &identity); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return &identity, nil
}
