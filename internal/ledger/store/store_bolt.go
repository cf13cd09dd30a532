package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"alpine/internal/ledger/models"
	"alpine/internal/platform/bolt"
	"alpine/pkg/platform/sentinel"
)

const (
	donationBucket    = "donations"
	senderBucket      = "donations_by_sender"
	recipientBucket   = "donations_by_recipient"
	countBucket       = "donation_count"
	countKey          = "count"
	indexKeySeparator = 0x00
)

// Buckets lists the buckets BoltStore needs; pass them to bolt.Open.
var Buckets = []string{donationBucket, senderBucket, recipientBucket, countBucket}

// BoltStore keeps donations under 8-byte big-endian ids so cursor order is id
// order. Index buckets hold empty values under address+0x00+id.
type BoltStore struct {
	db *bolt.DB
}

func NewBolt(db *bolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

func (s *BoltStore) IncrementCount(ctx context.Context) (uint64, error) {
	var next uint64
	err := s.db.Update(ctx, func(tx *bbolt.Tx) error {
		b, err := bolt.Bucket(tx, countBucket)
		if err != nil {
			return err
		}
		next = decodeCount(b.Get([]byte(countKey))) + 1
		return b.Put([]byte(countKey), encodeID(next))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func (s *BoltStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.db.View(ctx, func(tx *bbolt.Tx) error {
		b, err := bolt.Bucket(tx, countBucket)
		if err != nil {
			return err
		}
		count = decodeCount(b.Get([]byte(countKey)))
		return nil
	})
	return count, err
}

func (s *BoltStore) Insert(ctx context.Context, donation *models.Donation) error {
	payload, err := json.Marshal(donation)
	if err != nil {
		return fmt.Errorf("marshal donation: %w", err)
	}
	key := encodeID(donation.ID)
	return s.db.Update(ctx, func(tx *bbolt.Tx) error {
		records, err := bolt.Bucket(tx, donationBucket)
		if err != nil {
			return err
		}
		if records.Get(key) != nil {
			return sentinel.ErrAlreadyUsed
		}
		if err := records.Put(key, payload); err != nil {
			return fmt.Errorf("put donation: %w", err)
		}
		if err := putIndex(tx, senderBucket, donation.Sender.Address, donation.ID); err != nil {
			return err
		}
		return putIndex(tx, recipientBucket, donation.Recipient.Address, donation.ID)
	})
}

func (s *BoltStore) FindByID(ctx context.Context, id uint64) (*models.Donation, error) {
	var found *models.Donation
	err := s.db.View(ctx, func(tx *bbolt.Tx) error {
		records, err := bolt.Bucket(tx, donationBucket)
		if err != nil {
			return err
		}
		v := records.Get(encodeID(id))
		if v == nil {
			return sentinel.ErrNotFound
		}
		found, err = decodeDonation(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) ListBySender(ctx context.Context, addr string) ([]*models.Donation, error) {
	return s.listByIndex(ctx, senderBucket, addr)
}

func (s *BoltStore) ListByRecipient(ctx context.Context, addr string) ([]*models.Donation, error) {
	return s.listByIndex(ctx, recipientBucket, addr)
}

// listByIndex prefix-scans the index bucket; ids come back ascending because
// the id suffix is big-endian.
func (s *BoltStore) listByIndex(ctx context.Context, bucket, addr string) ([]*models.Donation, error) {
	prefix := indexPrefix(addr)
	out := []*models.Donation{}
	err := s.db.View(ctx, func(tx *bbolt.Tx) error {
		index, err := bolt.Bucket(tx, bucket)
		if err != nil {
			return err
		}
		records, err := bolt.Bucket(tx, donationBucket)
		if err != nil {
			return err
		}
		c := index.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			idKey := k[len(prefix):]
			v := records.Get(idKey)
			if v == nil {
				return fmt.Errorf("%s entry %x points at missing donation", bucket, idKey)
			}
			donation, err := decodeDonation(v)
			if err != nil {
				return err
			}
			out = append(out, donation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func putIndex(tx *bbolt.Tx, bucket, addr string, id uint64) error {
	b, err := bolt.Bucket(tx, bucket)
	if err != nil {
		return err
	}
	key := append(indexPrefix(addr), encodeID(id)...)
	if err := b.Put(key, []byte{}); err != nil {
		return fmt.Errorf("put %s entry: %w", bucket, err)
	}
	return nil
}

func indexPrefix(addr string) []byte {
	prefix := make([]byte, 0, len(addr)+1+8)
	prefix = append(prefix, addr...)
	return append(prefix, indexKeySeparator)
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func decodeCount(v []byte) uint64 {
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func decodeDonation(v []byte) (*models.Donation, error) {
	var d models.Donation
	if err := json.Unmarshal(v, &d); err != nil {
		return nil, fmt.Errorf("decode donation: %w", err)
	}
	return &d, nil
}
