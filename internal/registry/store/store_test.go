package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"alpine/internal/platform/bolt"
	"alpine/internal/registry/models"
	"alpine/pkg/platform/sentinel"
	"alpine/pkg/testutil"
)

// identityStore is the behaviour every registry backend shares.
type identityStore interface {
	FindByUsernameFold(ctx context.Context, username string) (*models.Identity, error)
	FindByAddress(ctx context.Context, addr string) (*models.Identity, error)
	Save(ctx context.Context, identity *models.Identity) error
	ListByUsername(ctx context.Context) ([]*models.Identity, error)
}

type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) identityStore
	store    identityStore
	ctx      context.Context

	// foldedUnique is set for backends that reject case variants of a stored username.
	foldedUnique bool
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
}

func (s *StoreSuite) identity(seed byte, username string) *models.Identity {
	return &models.Identity{Address: testutil.Address(s.T(), seed), Username: username}
}

func (s *StoreSuite) TestSaveAndFind() {
	alice := s.identity(1, "alice")
	s.Require().NoError(s.store.Save(s.ctx, alice))

	s.Run("by address", func() {
		got, err := s.store.FindByAddress(s.ctx, alice.Address)
		s.Require().NoError(err)
		s.Equal(alice, got)
	})

	s.Run("by username ignoring case", func() {
		got, err := s.store.FindByUsernameFold(s.ctx, "ALICE")
		s.Require().NoError(err)
		s.Equal(alice, got)
	})

	s.Run("unknown address", func() {
		_, err := s.store.FindByAddress(s.ctx, testutil.Address(s.T(), 99))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown username", func() {
		_, err := s.store.FindByUsernameFold(s.ctx, "bob")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestSaveRejectsUsedKeys() {
	s.Require().NoError(s.store.Save(s.ctx, s.identity(1, "alice")))

	s.Run("same username", func() {
		err := s.store.Save(s.ctx, s.identity(2, "alice"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
		_, err = s.store.FindByAddress(s.ctx, testutil.Address(s.T(), 2))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("same address", func() {
		err := s.store.Save(s.ctx, s.identity(1, "carol"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
		s.ErrorIs(err, models.ErrAddressInUse)
		_, err = s.store.FindByUsernameFold(s.ctx, "carol")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestFindByUsernameFoldPrefersGreatestKey() {
	if s.foldedUnique {
		s.T().Skip("backend rejects case variants")
	}
	s.Require().NoError(s.store.Save(s.ctx, s.identity(1, "Alice")))
	s.Require().NoError(s.store.Save(s.ctx, s.identity(2, "alice")))
	s.Require().NoError(s.store.Save(s.ctx, s.identity(3, "ALICE")))

	for _, query := range []string{"ALICE", "alice", "aLiCe"} {
		got, err := s.store.FindByUsernameFold(s.ctx, query)
		s.Require().NoError(err)
		s.Equal("alice", got.Username, query)
		s.Equal(testutil.Address(s.T(), 2), got.Address, query)
	}
}

func (s *StoreSuite) TestListByUsernameIsAscending() {
	s.Require().NoError(s.store.Save(s.ctx, s.identity(3, "zed")))
	s.Require().NoError(s.store.Save(s.ctx, s.identity(1, "amy")))
	s.Require().NoError(s.store.Save(s.ctx, s.identity(2, "Bob")))

	list, err := s.store.ListByUsername(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("Bob", list[0].Username)
	s.Equal("amy", list[1].Username)
	s.Equal("zed", list[2].Username)
}

func (s *StoreSuite) TestListEmpty() {
	list, err := s.store.ListByUsername(s.ctx)
	s.Require().NoError(err)
	s.Empty(list)
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) identityStore { return NewInMemory() }})
}

func TestBoltStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) identityStore {
		db, err := bolt.Open(filepath.Join(t.TempDir(), "registry.db"), Buckets...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return NewBolt(db)
	}})
}

func TestBoltStoreJoinsOuterTransaction(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "registry.db"), Buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewBolt(db)
	ctx := context.Background()
	addr := testutil.Address(t, 7)

	err = db.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.Save(txCtx, &models.Identity{Address: addr, Username: "dave"}); err != nil {
			return err
		}
		got, err := s.FindByAddress(txCtx, addr)
		require.NoError(t, err)
		require.Equal(t, "dave", got.Username)
		return sentinel.ErrUnavailable
	})
	require.ErrorIs(t, err, sentinel.ErrUnavailable)

	_, err = s.FindByAddress(ctx, addr)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
