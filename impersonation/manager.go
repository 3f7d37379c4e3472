package impersonation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/saasgate/tenant-gateway/handoff"
	"github.com/saasgate/tenant-gateway/internal/errors"
	sessionjwt "github.com/saasgate/tenant-gateway/token/jwt"
)

// Manager is the boundary contract for impersonation sessions: it mints
// the handoff tokens that start them, opens the audit records when the
// broker redeems an impersonation handoff, and ends sessions on request.
type Manager struct {
	records    Repo
	minter     *handoff.Minter
	minMinutes int
	maxMinutes int
	log        zerolog.Logger
}

// NewManager creates a new impersonation session manager
func NewManager(records Repo, minter *handoff.Minter, minMinutes, maxMinutes int, log zerolog.Logger) *Manager {
	return &Manager{
		records:    records,
		minter:     minter,
		minMinutes: minMinutes,
		maxMinutes: maxMinutes,
		log:        log,
	}
}

var _ handoff.RecordStarter = (*Manager)(nil)

// Start validates the request and mints a handoff token. An empty
// targetUserID produces a secure admin login handoff; a non-empty one an
// impersonation handoff. The reason is mandatory either way and the
// duration must sit inside the configured bounds.
func (m *Manager) Start(ctx context.Context, tenantID, impersonatorID, targetUserID, reason string, durationMinutes int) (string, handoff.Token, error) {
	if strings.TrimSpace(reason) == "" {
		return "", handoff.Token{}, errors.ErrInvalidReason
	}
	if durationMinutes < m.minMinutes || durationMinutes > m.maxMinutes {
		return "", handoff.Token{}, errors.ErrInvalidDuration
	}

	kind := handoff.KindSecureLogin
	if targetUserID != "" {
		kind = handoff.KindImpersonation
	}

	t := handoff.Token{
		ID:              uuid.New().String(),
		Kind:            kind,
		TargetTenantID:  tenantID,
		TargetUserID:    targetUserID,
		IssuedBy:        impersonatorID,
		Reason:          strings.TrimSpace(reason),
		DurationMinutes: durationMinutes,
		IssuedAt:        sessionjwt.NowTimeFunc(),
	}

	raw, err := m.minter.Mint(t)
	if err != nil {
		return "", handoff.Token{}, err
	}

	m.log.Info().
		Str("token_id", t.ID).
		Str("kind", string(kind)).
		Str("tenant", tenantID).
		Str("issued_by", impersonatorID).
		Int("duration_minutes", durationMinutes).
		Msg("handoff token minted")

	return raw, t, nil
}

// StartRecord opens the Active audit record for a redeemed impersonation
// handoff. Implements handoff.RecordStarter.
func (m *Manager) StartRecord(ctx context.Context, t handoff.Token) (string, error) {
	now := sessionjwt.NowTimeFunc()
	rec := Record{
		ID:                 uuid.New().String(),
		TenantID:           t.TargetTenantID,
		ImpersonatorID:     t.IssuedBy,
		ImpersonatedUserID: t.TargetUserID,
		Reason:             t.Reason,
		StartedAt:          now,
		ExpiresAt:          now.Add(time.Duration(t.DurationMinutes) * time.Minute),
		Status:             StatusActive,
	}

	if err := m.records.Create(ctx, rec); err != nil {
		return "", errors.Wrapf(err, "failed to create impersonation record")
	}
	return rec.ID, nil
}

// End closes an impersonation session. Ending an already-ended session is
// a no-op, not an error.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	if err := m.records.End(ctx, sessionID, sessionjwt.NowTimeFunc()); err != nil {
		return err
	}
	m.log.Info().Str("session_id", sessionID).Msg("impersonation session ended")
	return nil
}

// IsActive reports whether an impersonation session is still live. A
// session past its duration reads as expired even before any store
// update.
func (m *Manager) IsActive(ctx context.Context, sessionID string) (bool, error) {
	rec, err := m.records.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return rec.EffectiveStatus(sessionjwt.NowTimeFunc()) == StatusActive, nil
}
