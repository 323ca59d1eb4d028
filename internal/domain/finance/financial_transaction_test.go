package finance

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/setoff/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPosting(account AccountRef, amount string) PostingRequest {
	return PostingRequest{
		Account:         account,
		Amount:          dec(amount),
		Type:            TransactionTypeAdjustment,
		TransactionDate: time.Now(),
		Source:          DocumentRef{Type: "MANUAL", ID: uuid.New()},
	}
}

func TestAccountBalance_Post(t *testing.T) {
	account := AccountRef{Kind: AccountKindCompanyCash, ID: uuid.New()}
	head := NewAccountBalance(uuid.New(), account)

	first := head.Post(testPosting(account, "600.00"))
	second := head.Post(testPosting(account, "-150.25"))

	assert.Equal(t, int64(1), first.Sequence)
	assert.True(t, first.BalanceBefore.IsZero())
	assert.True(t, first.BalanceAfter.Equal(dec("600")))
	assert.Equal(t, int64(2), second.Sequence)
	assert.True(t, second.BalanceBefore.Equal(dec("600")))
	assert.True(t, second.BalanceAfter.Equal(dec("449.75")))
	assert.True(t, head.Balance.Equal(dec("449.75")))
	assert.Equal(t, second.ID, *head.LastTransactionID)
	assert.Nil(t, VerifyChain([]*FinancialTransaction{first, second}))
}

func TestPostingRequest_Validate(t *testing.T) {
	account := AccountRef{Kind: AccountKindBank, ID: uuid.New()}

	assert.NoError(t, testPosting(account, "1").Validate())

	zero := testPosting(account, "0")
	assert.True(t, errors.Is(zero.Validate(), shared.ErrValidation))

	precise := testPosting(account, "1.001")
	assert.True(t, errors.Is(precise.Validate(), shared.ErrValidation))

	reversal := testPosting(account, "1")
	reversal.Type = TransactionTypeReversal
	assert.True(t, errors.Is(reversal.Validate(), shared.ErrValidation))

	noAccount := testPosting(AccountRef{}, "1")
	assert.True(t, errors.Is(noAccount.Validate(), shared.ErrValidation))
}

func TestFinancialTransaction_ReversalRules(t *testing.T) {
	account := AccountRef{Kind: AccountKindCompanyCash, ID: uuid.New()}
	head := NewAccountBalance(uuid.New(), account)
	original := head.Post(testPosting(account, "600"))

	req, err := original.ReversalRequest()
	require.NoError(t, err)
	assert.True(t, req.Amount.Equal(dec("-600")))
	assert.Equal(t, TransactionTypeReversal, req.Type)

	reversal := head.Post(req)
	reversal.ReversalOfID = &original.ID
	require.NoError(t, original.MarkReversedBy(reversal.ID))

	assert.True(t, head.Balance.IsZero(), "balance returns to its value before the original")

	_, err = original.ReversalRequest()
	var are *AlreadyReversedError
	require.True(t, errors.As(err, &are))
	assert.True(t, errors.Is(err, shared.ErrAlreadyReversed))

	_, err = reversal.ReversalRequest()
	assert.True(t, errors.Is(err, shared.ErrInvalidState), "a reversal cannot be reversed")

	pair, err := NewReversalPair(original, reversal)
	require.NoError(t, err)
	assert.True(t, pair.Net().IsZero())

	_, err = NewReversalPair(reversal, original)
	assert.Error(t, err)
}

func TestVerifyChain_DetectsBreaks(t *testing.T) {
	account := AccountRef{Kind: AccountKindParty, ID: uuid.New()}
	head := NewAccountBalance(uuid.New(), account)
	a := head.Post(testPosting(account, "10"))
	b := head.Post(testPosting(account, "5"))

	tampered := *b
	tampered.BalanceBefore = dec("11")
	brk := VerifyChain([]*FinancialTransaction{a, &tampered})
	require.NotNil(t, brk)
	assert.Equal(t, b.ID, brk.TransactionID)

	gap := *b
	gap.Sequence = 3
	assert.NotNil(t, VerifyChain([]*FinancialTransaction{a, &gap}))

	wrongAfter := *b
	wrongAfter.BalanceAfter = dec("14")
	assert.NotNil(t, VerifyChain([]*FinancialTransaction{a, &wrongAfter}))
}

func TestParseAccountRef(t *testing.T) {
	id := uuid.New()
	ref, err := ParseAccountRef("BANK", id.String())
	require.NoError(t, err)
	assert.Equal(t, AccountRef{Kind: AccountKindBank, ID: id}, ref)
	assert.Equal(t, "BANK:"+id.String(), ref.String())

	_, err = ParseAccountRef("WALLET", id.String())
	assert.True(t, errors.Is(err, shared.ErrValidation))
	_, err = ParseAccountRef("BANK", "nope")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
