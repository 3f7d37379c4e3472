package impersonation_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/saasgate/tenant-gateway/handoff"
	"github.com/saasgate/tenant-gateway/impersonation"
	"github.com/saasgate/tenant-gateway/internal/errors"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
	"github.com/saasgate/tenant-gateway/token/keys"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	repo    *impersonation.InMemoryRepo
	minter  *handoff.Minter
	manager *impersonation.Manager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	keyPair, err := keys.GenerateRSAKeyPair("test-key-1", 2048)
	require.NoError(t, err)
	minter := handoff.NewMinter(keys.NewKeyPairSigner(keyPair), 5*time.Minute)
	repo := impersonation.NewInMemoryRepo()
	manager := impersonation.NewManager(repo, minter, 15, 480, zerolog.Nop())

	return &managerFixture{repo: repo, minter: minter, manager: manager}
}

func TestManager_Start(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	t.Run("impersonation handoff", func(t *testing.T) {
		raw, minted, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "support ticket 4821", 60)
		require.NoError(t, err)
		require.Equal(t, handoff.KindImpersonation, minted.Kind)

		decoded, err := f.minter.Verify(raw)
		require.NoError(t, err)
		require.Equal(t, "acme", decoded.TargetTenantID)
		require.Equal(t, "user-7", decoded.TargetUserID)
		require.Equal(t, "admin-1", decoded.IssuedBy)
	})

	t.Run("secure login handoff without target user", func(t *testing.T) {
		_, minted, err := f.manager.Start(ctx, "acme", "admin-1", "", "maintenance window", 30)
		require.NoError(t, err)
		require.Equal(t, handoff.KindSecureLogin, minted.Kind)
		require.Empty(t, minted.TargetUserID)
	})

	t.Run("empty reason rejected", func(t *testing.T) {
		_, _, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "   ", 60)
		require.ErrorIs(t, err, errors.ErrInvalidReason)
	})

	t.Run("duration out of bounds rejected", func(t *testing.T) {
		_, _, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "valid reason", 5)
		require.ErrorIs(t, err, errors.ErrInvalidDuration)

		_, _, err = f.manager.Start(ctx, "acme", "admin-1", "user-7", "valid reason", 481)
		require.ErrorIs(t, err, errors.ErrInvalidDuration)
	})

	t.Run("duration at the bounds accepted", func(t *testing.T) {
		_, _, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "valid reason", 15)
		require.NoError(t, err)

		_, _, err = f.manager.Start(ctx, "acme", "admin-1", "user-7", "valid reason", 480)
		require.NoError(t, err)
	})
}

func TestManager_StartRecordAndEnd(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, minted, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)

	recordID, err := f.manager.StartRecord(ctx, minted)
	require.NoError(t, err)

	active, err := f.manager.IsActive(ctx, recordID)
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, f.manager.End(ctx, recordID))

	active, err = f.manager.IsActive(ctx, recordID)
	require.NoError(t, err)
	require.False(t, active)

	rec, err := f.repo.Get(ctx, recordID)
	require.NoError(t, err)
	require.Equal(t, impersonation.StatusEnded, rec.Status)
	require.NotNil(t, rec.EndedAt)
}

func TestManager_EndIsIdempotent(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, minted, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)
	recordID, err := f.manager.StartRecord(ctx, minted)
	require.NoError(t, err)

	require.NoError(t, f.manager.End(ctx, recordID))
	firstEnd, err := f.repo.Get(ctx, recordID)
	require.NoError(t, err)

	// Second end is a no-op; the record stays exactly as it was.
	require.NoError(t, f.manager.End(ctx, recordID))
	secondEnd, err := f.repo.Get(ctx, recordID)
	require.NoError(t, err)
	require.Equal(t, firstEnd, secondEnd)
}

func TestManager_EndUnknownSession(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.End(context.Background(), "no-such-session")
	require.ErrorIs(t, err, errors.ErrRecordNotFound)
}

func TestManager_IsActive_ExpiresWithDuration(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	sessionjwt.NowTimeFunc = func() time.Time { return now }
	defer func() { sessionjwt.NowTimeFunc = time.Now }()

	_, minted, err := f.manager.Start(ctx, "acme", "admin-1", "user-7", "support ticket 4821", 60)
	require.NoError(t, err)
	recordID, err := f.manager.StartRecord(ctx, minted)
	require.NoError(t, err)

	active, err := f.manager.IsActive(ctx, recordID)
	require.NoError(t, err)
	require.True(t, active)

	// One hour later the session has expired without any store write.
	sessionjwt.NowTimeFunc = func() time.Time { return now.Add(time.Hour) }

	active, err = f.manager.IsActive(ctx, recordID)
	require.NoError(t, err)
	require.False(t, active)
}
