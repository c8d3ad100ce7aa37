// AngelaMos | 2026
// service_test.go

package promo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow-api/internal/config"
	"github.com/postflowhq/postflow-api/internal/core"
	"github.com/postflowhq/postflow-api/internal/subscriber"
)

type fakeRepo struct {
	codes       map[string]*PromoCode
	redemptions map[string]bool
	getCalls    int
}

func (f *fakeRepo) CreateCode(_ context.Context, code *PromoCode) error {
	if _, exists := f.codes[code.Code]; exists {
		return fmt.Errorf("create promo code: %w", core.ErrDuplicateKey)
	}
	f.codes[code.Code] = code
	return nil
}

func (f *fakeRepo) GetByCode(
	_ context.Context,
	code string,
) (*PromoCode, error) {
	f.getCalls++
	pc, ok := f.codes[code]
	if !ok {
		return nil, fmt.Errorf("get promo code: %w", core.ErrNotFound)
	}
	clone := *pc
	return &clone, nil
}

func (f *fakeRepo) ListCodes(_ context.Context) ([]PromoCode, error) {
	out := make([]PromoCode, 0, len(f.codes))
	for _, pc := range f.codes {
		out = append(out, *pc)
	}
	return out, nil
}

func (f *fakeRepo) HasRedemption(
	_ context.Context,
	code, userID string,
) (bool, error) {
	return f.redemptions[code+":"+userID], nil
}

func (f *fakeRepo) IncrementRedemptionCount(
	_ context.Context,
	code string,
	expectedCount int,
) error {
	pc := f.codes[code]
	if pc.RedemptionCount != expectedCount || pc.Exhausted() {
		return fmt.Errorf("increment redemption count: %w", core.ErrConflict)
	}
	pc.RedemptionCount++
	return nil
}

func (f *fakeRepo) InsertRedemption(
	_ context.Context,
	code, userID string,
	_ time.Time,
) error {
	f.redemptions[code+":"+userID] = true
	return nil
}

type fakeSubscribers struct {
	sub *subscriber.Subscriber
}

func (f *fakeSubscribers) GetByID(
	_ context.Context,
	id string,
) (*subscriber.Subscriber, error) {
	if f.sub == nil || f.sub.ID != id {
		return nil, fmt.Errorf("get subscriber: %w", core.ErrNotFound)
	}
	clone := *f.sub
	return &clone, nil
}

// fakeApplier either commits the grant against the fake repo or fails with a
// queued error; afterFail lets a test mutate state between attempts the way
// a concurrent winner would.
type fakeApplier struct {
	repo      *fakeRepo
	subs      *fakeSubscribers
	failures  []error
	afterFail func()
	grants    []Grant
}

func (f *fakeApplier) Apply(_ context.Context, grant Grant) error {
	f.grants = append(f.grants, grant)

	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		if f.afterFail != nil {
			f.afterFail()
		}
		return err
	}

	pc := f.repo.codes[grant.Code]
	pc.RedemptionCount++
	f.repo.redemptions[grant.Code+":"+grant.UserID] = true

	f.subs.sub.Tier = grant.Patch.Tier
	f.subs.sub.Subscribed = grant.Patch.Subscribed
	f.subs.sub.TierEffectiveAt = grant.Patch.TierEffectiveAt
	f.subs.sub.ExpiresAt = grant.Patch.ExpiresAt
	f.subs.sub.Version++
	return nil
}

type recordingInvalidator struct {
	calls []string
}

func (r *recordingInvalidator) InvalidateSnapshot(
	_ context.Context,
	userID string,
) {
	r.calls = append(r.calls, userID)
}

type redeemFixture struct {
	repo        *fakeRepo
	subs        *fakeSubscribers
	applier     *fakeApplier
	invalidator *recordingInvalidator
	svc         *Service
}

func newRedeemFixture() *redeemFixture {
	repo := &fakeRepo{
		codes:       map[string]*PromoCode{},
		redemptions: map[string]bool{},
	}
	subs := &fakeSubscribers{
		sub: &subscriber.Subscriber{
			ID:         "sub-1",
			Tier:       subscriber.TierFree,
			Subscribed: false,
			Version:    1,
		},
	}
	applier := &fakeApplier{repo: repo, subs: subs}
	invalidator := &recordingInvalidator{}

	svc := NewService(
		repo,
		subs,
		applier,
		invalidator,
		config.PromoConfig{CodeLength: 12},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	return &redeemFixture{
		repo:        repo,
		subs:        subs,
		applier:     applier,
		invalidator: invalidator,
		svc:         svc,
	}
}

func (f *redeemFixture) addCode(code *PromoCode) {
	f.repo.codes[code.Code] = code
}

func starterCode() *PromoCode {
	return &PromoCode{
		Code:         "SUMMERLAUNCH",
		GrantedTier:  subscriber.TierStarter,
		ValidityDays: 30,
		PerUserOnce:  true,
	}
}

func intPtr(v int) *int { return &v }

func TestRedeemSuccess(t *testing.T) {
	f := newRedeemFixture()
	f.addCode(starterCode())
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	result, err := f.svc.Redeem(context.Background(), "sub-1", "SUMMERLAUNCH", now)
	require.NoError(t, err)

	assert.Equal(t, subscriber.TierStarter, result.Tier)
	require.NotNil(t, result.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *result.ExpiresAt)

	assert.Equal(t, subscriber.TierStarter, f.subs.sub.Tier)
	assert.True(t, f.subs.sub.Subscribed)
	assert.Equal(t, now, *f.subs.sub.TierEffectiveAt)
	assert.Equal(t, []string{"sub-1"}, f.invalidator.calls)
}

func TestRedeemNormalizesInput(t *testing.T) {
	f := newRedeemFixture()
	f.addCode(starterCode())

	_, err := f.svc.Redeem(
		context.Background(),
		"sub-1",
		"  summerlaunch ",
		time.Now(),
	)

	require.NoError(t, err)
}

func TestRedeemInvalidFormatRejectedBeforeStore(t *testing.T) {
	f := newRedeemFixture()

	tests := []string{
		"SHORT",
		"WAYTOOLONGFORACODE",
		"SUMMER-LAUNC",
		"",
	}

	for _, raw := range tests {
		_, err := f.svc.Redeem(context.Background(), "sub-1", raw, time.Now())

		var policyErr *PolicyError
		require.ErrorAs(t, err, &policyErr, "code %q", raw)
		assert.Equal(t, RejectInvalidFormat, policyErr.Kind)
	}

	assert.Zero(t, f.repo.getCalls, "malformed codes must not reach the store")
}

func TestRedeemRejectionKinds(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		setup func(f *redeemFixture)
		code  string
		want  RejectionKind
	}{
		{
			name:  "unknown code",
			setup: func(f *redeemFixture) {},
			code:  "NOSUCHCODE12",
			want:  RejectNotFound,
		},
		{
			name: "exhausted",
			setup: func(f *redeemFixture) {
				pc := starterCode()
				pc.MaxRedemptions = intPtr(1)
				pc.RedemptionCount = 1
				f.addCode(pc)
			},
			code: "SUMMERLAUNCH",
			want: RejectExhausted,
		},
		{
			name: "already redeemed",
			setup: func(f *redeemFixture) {
				f.addCode(starterCode())
				f.repo.redemptions["SUMMERLAUNCH:sub-1"] = true
			},
			code: "SUMMERLAUNCH",
			want: RejectAlreadyRedeemed,
		},
		{
			name: "expired",
			setup: func(f *redeemFixture) {
				pc := starterCode()
				pc.ExpiresAt = &past
				f.addCode(pc)
			},
			code: "SUMMERLAUNCH",
			want: RejectExpired,
		},
		{
			name: "exhausted wins over expired",
			setup: func(f *redeemFixture) {
				pc := starterCode()
				pc.MaxRedemptions = intPtr(1)
				pc.RedemptionCount = 1
				pc.ExpiresAt = &past
				f.addCode(pc)
			},
			code: "SUMMERLAUNCH",
			want: RejectExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRedeemFixture()
			tt.setup(f)

			_, err := f.svc.Redeem(context.Background(), "sub-1", tt.code, now)

			var policyErr *PolicyError
			require.ErrorAs(t, err, &policyErr)
			assert.Equal(t, tt.want, policyErr.Kind)

			assert.Empty(t, f.applier.grants, "rejection must not mutate")
			assert.Empty(t, f.invalidator.calls)
			assert.Equal(
				t,
				subscriber.TierFree,
				f.subs.sub.Tier,
				"subscriber must be untouched",
			)
		})
	}
}

func TestRedeemReplacesWindowInsteadOfExtending(t *testing.T) {
	f := newRedeemFixture()
	f.addCode(starterCode())
	pro := &PromoCode{
		Code:         "PROUPGRADE99",
		GrantedTier:  subscriber.TierPro,
		ValidityDays: 30,
		PerUserOnce:  true,
	}
	f.addCode(pro)

	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.Redeem(context.Background(), "sub-1", "SUMMERLAUNCH", first)
	require.NoError(t, err)

	second := first.AddDate(0, 0, 10)
	result, err := f.svc.Redeem(context.Background(), "sub-1", "PROUPGRADE99", second)
	require.NoError(t, err)

	// The second grant re-anchors at its own redemption instant; nothing
	// carries over from the ten days already consumed.
	assert.Equal(t, second, *f.subs.sub.TierEffectiveAt)
	assert.Equal(t, second.AddDate(0, 0, 30), *result.ExpiresAt)
	assert.Equal(t, subscriber.TierPro, f.subs.sub.Tier)
}

func TestRedeemRetriesOnceOnConflict(t *testing.T) {
	f := newRedeemFixture()
	f.addCode(starterCode())
	f.applier.failures = []error{
		fmt.Errorf("increment redemption count: %w", core.ErrConflict),
	}

	_, err := f.svc.Redeem(
		context.Background(),
		"sub-1",
		"SUMMERLAUNCH",
		time.Now(),
	)
	require.NoError(t, err)

	assert.Len(t, f.applier.grants, 2)
	assert.Equal(t, 2, f.repo.getCalls, "retry must re-run validation")
}

func TestRedeemConflictRetryRevalidates(t *testing.T) {
	f := newRedeemFixture()
	pc := starterCode()
	pc.MaxRedemptions = intPtr(1)
	f.addCode(pc)

	// A concurrent redemption takes the last slot between our read and our
	// write; the retry must see the exhausted code, not grant anyway.
	f.applier.failures = []error{
		fmt.Errorf("increment redemption count: %w", core.ErrConflict),
	}
	f.applier.afterFail = func() {
		f.repo.codes["SUMMERLAUNCH"].RedemptionCount = 1
	}

	_, err := f.svc.Redeem(
		context.Background(),
		"sub-1",
		"SUMMERLAUNCH",
		time.Now(),
	)

	var policyErr *PolicyError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, RejectExhausted, policyErr.Kind)
	assert.Equal(t, subscriber.TierFree, f.subs.sub.Tier)
}

func TestRedeemGivesUpAfterSecondConflict(t *testing.T) {
	f := newRedeemFixture()
	f.addCode(starterCode())
	f.applier.failures = []error{
		fmt.Errorf("update tier: %w", core.ErrConflict),
		fmt.Errorf("update tier: %w", core.ErrConflict),
	}

	_, err := f.svc.Redeem(
		context.Background(),
		"sub-1",
		"SUMMERLAUNCH",
		time.Now(),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Empty(t, f.invalidator.calls)
}

func TestRedeemPinsExpectedValues(t *testing.T) {
	f := newRedeemFixture()
	pc := starterCode()
	pc.RedemptionCount = 4
	f.addCode(pc)
	f.subs.sub.Version = 9

	_, err := f.svc.Redeem(
		context.Background(),
		"sub-1",
		"SUMMERLAUNCH",
		time.Now(),
	)
	require.NoError(t, err)

	require.Len(t, f.applier.grants, 1)
	grant := f.applier.grants[0]
	assert.Equal(t, 4, grant.ExpectedCount)
	assert.Equal(t, 9, grant.ExpectedVersion)
}

func TestCreateCodeValidatesFormat(t *testing.T) {
	f := newRedeemFixture()

	_, err := f.svc.CreateCode(context.Background(), CreateCodeRequest{
		Code:         "bad",
		GrantedTier:  subscriber.TierStarter,
		ValidityDays: 30,
	})

	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestCreateCodeDefaultsPerUserOnce(t *testing.T) {
	f := newRedeemFixture()

	code, err := f.svc.CreateCode(context.Background(), CreateCodeRequest{
		Code:         "winterspecia",
		GrantedTier:  subscriber.TierPro,
		ValidityDays: 14,
	})
	require.NoError(t, err)

	assert.Equal(t, "WINTERSPECIA", code.Code)
	assert.True(t, code.PerUserOnce)
}
