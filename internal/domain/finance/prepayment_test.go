package finance

import (
	"errors"
	"testing"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrepayment(t *testing.T, amount string) *SetoffPrepayment {
	t.Helper()
	p, err := NewSetoffPrepayment(uuid.New(), uuid.New(), DirectionReceivable, dec(amount), "PRE-1", nil)
	require.NoError(t, err)
	return p
}

func TestNewSetoffPrepayment(t *testing.T) {
	p := newTestPrepayment(t, "500.01")
	assert.True(t, p.Amount.Equal(dec("500.01")))
	assert.True(t, p.UsedAmount.IsZero())
	assert.Equal(t, PrepaymentStatusActive, p.Status)
	require.Len(t, p.GetDomainEvents(), 1)
	assert.Equal(t, EventTypePrepaymentCreated, p.GetDomainEvents()[0].EventType())

	_, err := NewSetoffPrepayment(uuid.New(), uuid.New(), DirectionReceivable, dec("0"), "", nil)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewSetoffPrepayment(uuid.New(), uuid.New(), DirectionReceivable, dec("500.005"), "", nil)
	var ve *shared.ValidationError
	require.True(t, errors.As(err, &ve), "sub-cent amounts are rejected, not rounded")
	assert.Equal(t, "amount", ve.Field)
}

func TestNewSetoffPrepaymentUsage_Validation(t *testing.T) {
	_, err := NewSetoffPrepaymentUsage(uuid.New(), uuid.New(), uuid.New(), dec("10.001"))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewSetoffPrepaymentUsage(uuid.New(), uuid.New(), uuid.New(), dec("-1"))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	_, err = NewSetoffPrepaymentUsage(uuid.New(), uuid.New(), uuid.Nil, dec("1"))
	assert.True(t, errors.Is(err, shared.ErrValidation))

	u, err := NewSetoffPrepaymentUsage(uuid.New(), uuid.New(), uuid.New(), dec("10.10"))
	require.NoError(t, err)
	assert.True(t, u.Amount.Equal(dec("10.1")))
}

func TestSetoffPrepayment_Use(t *testing.T) {
	t.Run("within available credit", func(t *testing.T) {
		p := newTestPrepayment(t, "100")
		require.NoError(t, p.Use(dec("60")))
		require.NoError(t, p.Use(dec("40")))
		assert.True(t, p.Available().IsZero())
		assert.Equal(t, 3, p.Version)
	})

	t.Run("beyond available leaves used unchanged", func(t *testing.T) {
		p := newTestPrepayment(t, "100")
		require.NoError(t, p.Use(dec("60")))

		err := p.Use(dec("40.01"))
		var ice *InsufficientCreditError
		require.True(t, errors.As(err, &ice))
		assert.True(t, ice.Available.Equal(dec("40")))
		assert.True(t, errors.Is(err, shared.ErrInsufficientCredit))
		assert.True(t, p.UsedAmount.Equal(dec("60")))
	})

	t.Run("voided prepayment cannot be used", func(t *testing.T) {
		p := newTestPrepayment(t, "100")
		require.NoError(t, p.Void())
		assert.True(t, errors.Is(p.Use(dec("1")), shared.ErrInvalidState))
	})
}

func TestSetoffPrepayment_Release(t *testing.T) {
	p := newTestPrepayment(t, "100")
	require.NoError(t, p.Use(dec("30")))
	require.NoError(t, p.Release(dec("30")))
	assert.True(t, p.UsedAmount.IsZero())
	assert.True(t, errors.Is(p.Release(dec("1")), shared.ErrInvalidState))
}

func TestSetoffPrepayment_Void(t *testing.T) {
	p := newTestPrepayment(t, "100")
	require.NoError(t, p.Use(dec("1")))
	assert.True(t, errors.Is(p.Void(), shared.ErrInvalidState), "credit in use")

	require.NoError(t, p.Release(dec("1")))
	require.NoError(t, p.Void())
	assert.True(t, errors.Is(p.Void(), shared.ErrInvalidState))
}

func TestSetoffPrepaymentUsage_MarkReversed(t *testing.T) {
	u, err := NewSetoffPrepaymentUsage(uuid.New(), uuid.New(), uuid.New(), dec("10"))
	require.NoError(t, err)

	require.NoError(t, u.MarkReversed())
	assert.True(t, u.Reversed)
	assert.NotNil(t, u.ReversedAt)

	err = u.MarkReversed()
	var are *AlreadyReversedError
	require.True(t, errors.As(err, &are))
	assert.Equal(t, u.ID, are.ID)
}

func TestPrepaymentReconciliation(t *testing.T) {
	assert.True(t, PrepaymentReconciliation{UsedAmount: dec("10"), UsageTotal: dec("10.00")}.Consistent())
	assert.False(t, PrepaymentReconciliation{UsedAmount: dec("10"), UsageTotal: dec("9")}.Consistent())
}
