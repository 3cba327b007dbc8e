package fundingrecord

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/store/storetest"
)

func newRecord(t *testing.T, db *gorm.DB, s IStore, createdAt, expiresAt time.Time) *model.FundingRecord {
	t.Helper()
	r, err := s.Create(db, &model.FundingRecord{
		ID:               uuid.NewString(),
		RequesterAddress: "0x1111111111111111111111111111111111111111",
		RewardAddress:    "0x1111111111111111111111111111111111111111",
		Chain:            model.ChainETH,
		DepositAddress:   "0x" + uuid.NewString()[:8],
		RequestedAmount:  decimal.NewFromInt(50),
		MinConfirmations: 1,
		CreatedAt:        createdAt,
		ExpiresAt:        expiresAt,
	})
	require.NoError(t, err)
	return r
}

func TestCreate_DefaultsToPending(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()

	r := newRecord(t, db, s, now, now.Add(time.Hour))

	got, err := s.GetByID(db, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FundingStatusPending, got.Status)
	assert.True(t, got.RequestedAmount.Equal(decimal.NewFromInt(50)))
	assert.False(t, got.FundedAmount.Valid)
	assert.Nil(t, got.RewardTxHash)
}

func TestListPending_OldestFirstAndNotExpired(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()

	newer := newRecord(t, db, s, now.Add(-time.Minute), now.Add(time.Hour))
	older := newRecord(t, db, s, now.Add(-10*time.Minute), now.Add(time.Hour))
	newRecord(t, db, s, now.Add(-2*time.Hour), now.Add(-time.Hour))

	confirmed := newRecord(t, db, s, now.Add(-20*time.Minute), now.Add(time.Hour))
	ok, err := s.Confirm(db, confirmed.ID, decimal.NewFromInt(1), "0xabc", 1)
	require.NoError(t, err)
	require.True(t, ok)

	records, err := s.ListPending(db, now, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, older.ID, records[0].ID)
	assert.Equal(t, newer.ID, records[1].ID)
}

func TestConfirm_IsCompareAndSwap(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()
	r := newRecord(t, db, s, now, now.Add(time.Hour))

	ok, err := s.Confirm(db, r.ID, decimal.NewFromInt(50), "0xfunding", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Confirm(db, r.ID, decimal.NewFromInt(99), "0xother", 5)
	require.NoError(t, err)
	assert.False(t, ok, "second confirm must not win")

	got, err := s.GetByID(db, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FundingStatusConfirmed, got.Status)
	assert.True(t, got.FundedAmount.Decimal.Equal(decimal.NewFromInt(50)))
	require.NotNil(t, got.FundingTxHash)
	assert.Equal(t, "0xfunding", *got.FundingTxHash)
	assert.Equal(t, 1, got.Confirmations)
}

func TestMarkRewardSent_AttachesExactlyOneHash(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()
	r := newRecord(t, db, s, now, now.Add(time.Hour))

	ok, err := s.MarkRewardSent(db, r.ID, "0xreward")
	require.NoError(t, err)
	assert.False(t, ok, "pending record cannot be rewarded")

	_, err = s.Confirm(db, r.ID, decimal.NewFromInt(50), "0xfunding", 1)
	require.NoError(t, err)

	ok, err = s.MarkRewardSent(db, r.ID, "0xreward")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkRewardSent(db, r.ID, "0xsecond")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.MarkFailed(db, r.ID)
	require.NoError(t, err)
	assert.False(t, ok, "reward_sent never regresses")

	got, err := s.GetByID(db, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FundingStatusRewardSent, got.Status)
	assert.Equal(t, "0xreward", *got.RewardTxHash)
}

func TestExpirePending_OnlyPastDuePending(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()

	due := newRecord(t, db, s, now.Add(-2*time.Hour), now.Add(-time.Hour))
	notDue := newRecord(t, db, s, now, now.Add(time.Hour))
	oldConfirmed := newRecord(t, db, s, now.Add(-48*time.Hour), now.Add(-47*time.Hour))
	err := db.Model(&model.FundingRecord{}).Where("id = ?", oldConfirmed.ID).
		Update("status", model.FundingStatusConfirmed).Error
	require.NoError(t, err)

	expired, err := s.ExpirePending(db, now)
	require.NoError(t, err)
	assert.Equal(t, []string{due.ID}, expired)

	for id, want := range map[string]model.FundingStatus{
		due.ID:          model.FundingStatusExpired,
		notDue.ID:       model.FundingStatusPending,
		oldConfirmed.ID: model.FundingStatusConfirmed,
	} {
		got, err := s.GetByID(db, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}

	ok, err := s.Confirm(db, due.ID, decimal.NewFromInt(1), "0xlate", 1)
	require.NoError(t, err)
	assert.False(t, ok, "expired record cannot be confirmed")
}

func TestCountByStatus(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()

	newRecord(t, db, s, now, now.Add(time.Hour))
	r := newRecord(t, db, s, now, now.Add(time.Hour))
	_, err := s.Confirm(db, r.ID, decimal.NewFromInt(1), "", 1)
	require.NoError(t, err)

	counts, err := s.CountByStatus(db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.FundingStatusPending])
	assert.Equal(t, int64(1), counts[model.FundingStatusConfirmed])
}

func TestConfirm_FundingTxHashIsUnique(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()
	first := newRecord(t, db, s, now, now.Add(time.Hour))
	second := newRecord(t, db, s, now, now.Add(time.Hour))

	ok, err := s.Confirm(db, first.ID, decimal.NewFromInt(1), "0xshared", 1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Confirm(db, second.ID, decimal.NewFromInt(1), "0xshared", 1)
	assert.Error(t, err, "one deposit tx funds one record")

	got, err := s.GetByFundingTxHash(db, "0xshared")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.GetByFundingTxHash(db, "0xunknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestConfirm_EmptyHashesDoNotCollide(t *testing.T) {
	db := storetest.NewDB(t)
	s := New()
	now := time.Now()

	for i := 0; i < 2; i++ {
		r := newRecord(t, db, s, now, now.Add(time.Hour))
		ok, err := s.Confirm(db, r.ID, decimal.NewFromInt(1), "", 1)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}
