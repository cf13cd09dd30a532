package superchat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	ledgermodels "alpine/internal/ledger/models"
	ledgerservice "alpine/internal/ledger/service"
	ledgerstore "alpine/internal/ledger/store"
	"alpine/internal/platform/bolt"
	registrymodels "alpine/internal/registry/models"
	registryservice "alpine/internal/registry/service"
	registrystore "alpine/internal/registry/store"
	"alpine/internal/transfer"
	dErrors "alpine/pkg/domain-errors"
	txcontext "alpine/pkg/platform/tx"
	"alpine/pkg/requestcontext"
	"alpine/pkg/testutil"
)

type recordingMover struct {
	calls []uint64
	err   error
}

func (m *recordingMover) Move(_ context.Context, id uint64, _ []transfer.Effect) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, id)
	return nil
}

type harness struct {
	executor *Executor
	queries  *Queries
	mover    *recordingMover
	platform string
}

func newMemoryHarness(t *testing.T, opts ...ExecutorOption) *harness {
	t.Helper()
	runner := txcontext.NewMutexRunner()
	return newHarness(t, runner, registrystore.NewInMemory(), ledgerstore.NewInMemory(), opts...)
}

func newBoltHarness(t *testing.T) *harness {
	t.Helper()
	buckets := append(append([]string{}, registrystore.Buckets...), ledgerstore.Buckets...)
	db, err := bolt.Open(filepath.Join(t.TempDir(), "alpine.db"), buckets...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newHarness(t, db, registrystore.NewBolt(db), ledgerstore.NewBolt(db))
}

func newHarness(t *testing.T, runner txcontext.Runner, rs registryservice.Store, ls ledgerservice.Store, opts ...ExecutorOption) *harness {
	t.Helper()
	validator := testutil.Validator()
	reg := registryservice.New(rs, registryservice.WithTx(runner))
	led := ledgerservice.New(ls, ledgerservice.WithTx(runner))
	platform := testutil.Address(t, 250)
	policy := transfer.NewPolicy(reg, validator, transfer.DefaultConfig(platform))
	mover := &recordingMover{}
	opts = append([]ExecutorOption{WithTx(runner)}, opts...)
	return &harness{
		executor: NewExecutor(reg, led, policy, mover, validator, opts...),
		queries:  NewQueries(reg, led, validator),
		mover:    mover,
		platform: platform,
	}
}

func (h *harness) register(t *testing.T, addr, username string) {
	t.Helper()
	ctx := requestcontext.WithCallerAddress(context.Background(), addr)
	_, err := h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: addr}, Username: username})
	require.NoError(t, err)
}

func (h *harness) donate(t *testing.T, caller string, at time.Time, in SendDonation) (*Result, error) {
	t.Helper()
	return h.executor.Execute(testutil.CallerContext(caller, at), in)
}

type ExecutorSuite struct {
	suite.Suite
	h     *harness
	alice string
	bob   string
	anon  string
	t0    time.Time
}

func TestExecutorSuite(t *testing.T) {
	suite.Run(t, new(ExecutorSuite))
}

func (s *ExecutorSuite) SetupTest() {
	s.h = newMemoryHarness(s.T())
	s.alice = testutil.Address(s.T(), 1)
	s.bob = testutil.Address(s.T(), 2)
	s.anon = testutil.Address(s.T(), 3)
	s.t0 = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ExecutorSuite) TestRegisterUser() {
	s.Run("registers and reports the stored username", func() {
		ctx := requestcontext.WithCallerAddress(context.Background(), s.alice)
		res, err := s.h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: s.alice}, Username: "alpine_user_1"})
		s.Require().NoError(err)
		v, ok := res.Attr("username")
		s.True(ok)
		s.Equal("alpine_user_1", v)

		available, err := s.h.queries.IsUsernameAvailable(context.Background(), "ALPINE_USER_1")
		s.Require().NoError(err)
		s.False(available)
	})

	s.Run("identity must be the caller", func() {
		ctx := requestcontext.WithCallerAddress(context.Background(), s.bob)
		_, err := s.h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: s.anon}, Username: "mallory"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidWalletAddress))
	})

	s.Run("malformed address", func() {
		ctx := requestcontext.WithCallerAddress(context.Background(), "garbage")
		_, err := s.h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: "garbage"}, Username: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidWalletAddress))
	})

	s.Run("unauthenticated", func() {
		_, err := s.h.executor.Execute(context.Background(), RegisterUser{Identity: registrymodels.Identity{Address: s.bob}, Username: "bob"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("username taken by another address", func() {
		ctx := requestcontext.WithCallerAddress(context.Background(), s.bob)
		_, err := s.h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: s.bob}, Username: "alpine_user_1"})
		s.True(dErrors.HasCode(err, dErrors.CodeUsernameNotAvailable))
		s.Equal("alpine_user_1", dErrors.Detail(err, "username"))
	})

	s.Run("too long", func() {
		ctx := requestcontext.WithCallerAddress(context.Background(), s.bob)
		_, err := s.h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: s.bob}, Username: "ThisUsernameIsTooLongAndWillCauseAnError"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidUsername))
		s.Equal(registrymodels.ReasonTooLong, dErrors.Detail(err, "reason"))
	})
}

func (s *ExecutorSuite) TestSendDonation() {
	s.h.register(s.T(), s.alice, "alice")
	s.h.register(s.T(), s.bob, "bob")

	s.Run("empty funds consume no id", func() {
		_, err := s.h.donate(s.T(), s.alice, s.t0, SendDonation{Sender: "alice", Recipient: "bob"})
		s.True(dErrors.HasCode(err, dErrors.CodeNoDonation))

		count, err := s.h.queries.DonationCount(context.Background())
		s.Require().NoError(err)
		s.Zero(count)
		s.Empty(s.h.mover.calls)
	})

	s.Run("records, reports attributes and hands effects to the mover", func() {
		res, err := s.h.donate(s.T(), s.alice, s.t0, SendDonation{
			Sender:    "alice",
			Recipient: "BOB",
			Message:   "gm",
			Funds:     ledgermodels.Funds{{Denom: "ujuno", Amount: 1000}},
		})
		s.Require().NoError(err)
		s.EqualValues(1, res.DonationID)
		s.Equal([]uint64{1}, s.h.mover.calls)

		want := map[string]string{
			"donation_id":        "1",
			"sender_address":     s.alice,
			"sender_username":    "alice",
			"recipient_address":  s.bob,
			"recipient_username": "bob",
			"amount":             "1000ujuno",
			"message":            "gm",
			"timestamp":          s.t0.Format(time.RFC3339Nano),
		}
		for k, v := range want {
			got, ok := res.Attr(k)
			s.True(ok, k)
			s.Equal(v, got, k)
		}
		s.Require().Len(res.Effects, 2)
		s.Equal(uint64(970), res.Effects[0].Amount[0].Amount)
		s.Equal(s.h.platform, res.Effects[1].ToAddress)

		donation, err := s.h.queries.Donation(context.Background(), 1)
		s.Require().NoError(err)
		s.Equal("gm", donation.Message)
	})

	s.Run("anonymous donation from an unregistered address", func() {
		res, err := s.h.donate(s.T(), s.anon, s.t0, SendDonation{
			Recipient: "bob",
			Funds:     ledgermodels.Funds{{Denom: "ujuno", Amount: 10}},
		})
		s.Require().NoError(err)
		v, _ := res.Attr("sender_username")
		s.Empty(v)
	})
}

func (s *ExecutorSuite) TestSentDonationsAreChronological() {
	a := testutil.Address(s.T(), 10)
	s.h.register(s.T(), a, "a")
	for i, seed := range []byte{11, 12, 13} {
		s.h.register(s.T(), testutil.Address(s.T(), seed), []string{"b", "c", "d"}[i])
	}

	offsets := map[string]time.Duration{"b": 2 * time.Hour, "c": 0, "d": time.Hour}
	for _, name := range []string{"b", "c", "d"} {
		_, err := s.h.donate(s.T(), a, s.t0.Add(offsets[name]), SendDonation{
			Sender:    "a",
			Recipient: name,
			Message:   name,
			Funds:     ledgermodels.Funds{{Denom: "ujuno", Amount: 100}},
		})
		s.Require().NoError(err)
	}

	sent, err := s.h.queries.SentDonations(context.Background(), "A")
	s.Require().NoError(err)
	s.Require().Len(sent, 3)
	s.Equal("c", sent[0].Donation.Message)
	s.Equal("d", sent[1].Donation.Message)
	s.Equal("b", sent[2].Donation.Message)
	s.Equal(sent[0].ID, sent[0].Donation.ID)

	received, err := s.h.queries.ReceivedDonations(context.Background(), "d")
	s.Require().NoError(err)
	s.Require().Len(received, 1)
	s.EqualValues(3, received[0].ID)
}

func (s *ExecutorSuite) TestUserLookupsFallBack() {
	s.Run("unregistered address yields an anonymous identity", func() {
		user, err := s.h.queries.UserByAddress(context.Background(), s.anon)
		s.Require().NoError(err)
		s.Equal(&registrymodels.Identity{Address: s.anon}, user)
	})

	s.Run("malformed address is rejected", func() {
		_, err := s.h.queries.UserByAddress(context.Background(), "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidWalletAddress))
	})

	s.Run("unknown username yields the empty identity", func() {
		user, err := s.h.queries.UserByName(context.Background(), "ghost")
		s.Require().NoError(err)
		s.Equal(registrymodels.Empty(), user)
	})

	s.Run("unknown username in donation lists is an error", func() {
		_, err := s.h.queries.SentDonations(context.Background(), "ghost")
		s.True(dErrors.HasCode(err, dErrors.CodeUserNotFound))
	})
}

func (s *ExecutorSuite) TestQueryDispatch() {
	s.h.register(s.T(), s.alice, "alice")
	ctx := context.Background()

	resp, err := s.h.queries.Run(ctx, GetAllUsers{})
	s.Require().NoError(err)
	s.Equal(MultiUserResponse{Users: []*registrymodels.Identity{{Address: s.alice, Username: "alice"}}}, resp)

	resp, err = s.h.queries.Run(ctx, IsUsernameAvailable{Username: "ALICE"})
	s.Require().NoError(err)
	s.Equal(UsernameAvailableResponse{IsAvailable: false}, resp)

	resp, err = s.h.queries.Run(ctx, GetDonationCount{})
	s.Require().NoError(err)
	s.Equal(DonationCountResponse{Count: 0}, resp)

	resp, err = s.h.queries.Run(ctx, GetUserByName{Username: "nobody"})
	s.Require().NoError(err)
	s.Equal(UserResponse{User: registrymodels.Empty()}, resp)

	_, err = s.h.queries.Run(ctx, GetSingleDonation{ID: 9})
	s.True(dErrors.HasCode(err, dErrors.CodeDonationNotFound))
}

func (s *ExecutorSuite) TestUnsupportedRequestsAreRejected() {
	ctx := requestcontext.WithCallerAddress(context.Background(), s.alice)

	intents := map[string]Intent{
		"nil intent":            nil,
		"nil pointer intent":    (*RegisterUser)(nil),
		"pointer intent":        &RegisterUser{Identity: registrymodels.Identity{Address: s.alice}, Username: "alice"},
		"pointer send donation": &SendDonation{Recipient: "bob"},
	}
	for name, intent := range intents {
		s.Run(name, func() {
			s.NotPanics(func() {
				_, err := s.h.executor.Execute(ctx, intent)
				s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "got %v", err)
			})
		})
	}

	queries := map[string]Query{
		"nil query":         nil,
		"nil pointer query": (*GetAllUsers)(nil),
		"pointer query":     &GetAllUsers{},
	}
	for name, query := range queries {
		s.Run(name, func() {
			s.NotPanics(func() {
				_, err := s.h.queries.Run(ctx, query)
				s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "got %v", err)
			})
		})
	}

	available, err := s.h.queries.IsUsernameAvailable(ctx, "alice")
	s.Require().NoError(err)
	s.True(available, "rejected intents must not register anything")
	count, err := s.h.queries.DonationCount(ctx)
	s.Require().NoError(err)
	s.Zero(count, "rejected intents must not record anything")
}

func TestFailedHandOffRollsBackTheRecord(t *testing.T) {
	h := newBoltHarness(t)
	alice := testutil.Address(t, 1)
	bob := testutil.Address(t, 2)
	h.register(t, alice, "alice")
	h.register(t, bob, "bob")

	h.mover.err = errors.New("broker unavailable")
	_, err := h.donate(t, alice, time.Now(), SendDonation{
		Sender:    "alice",
		Recipient: "bob",
		Funds:     ledgermodels.Funds{{Denom: "ujuno", Amount: 100}},
	})
	require.Error(t, err)

	count, err := h.queries.DonationCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	sent, err := h.queries.SentDonations(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, sent)

	h.mover.err = nil
	res, err := h.donate(t, alice, time.Now(), SendDonation{
		Sender:    "alice",
		Recipient: "bob",
		Funds:     ledgermodels.Funds{{Denom: "ujuno", Amount: 100}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.DonationID, "rolled back id must be reused")
}

func TestExecuteRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	h := newMemoryHarness(t, WithTracer(provider.Tracer("test")))
	addr := testutil.Address(t, 1)

	ctx := requestcontext.WithCallerAddress(context.Background(), addr)
	_, err := h.executor.Execute(ctx, RegisterUser{Identity: registrymodels.Identity{Address: addr}, Username: ""})
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "superchat.execute register_user", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
