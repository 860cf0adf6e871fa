package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinhTuanPham/Dealer-Payment-Desk/internal/backend"
)

func order(grandTotal, amountPaid int64) *backend.Order {
	status := backend.PaymentUnpaid
	if amountPaid > 0 {
		status = backend.PaymentPartial
	}
	return &backend.Order{
		OrderID:       482,
		Subtotal:      grandTotal,
		GrandTotal:    grandTotal,
		AmountPaid:    amountPaid,
		OrderStatus:   backend.OrderPending,
		PaymentStatus: status,
	}
}

func TestApplyFullPayment(t *testing.T) {
	result, err := Apply(order(1_000_000, 0), 1_000_000)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(0), result.ChangeAmount)
	assert.Equal(t, int64(1_000_000), result.TotalCollected)
	assert.Equal(t, backend.PaymentPaid, result.PaymentStatus)
	assert.Equal(t, backend.OrderConfirmed, result.OrderStatus)
}

func TestApplyPartialPayment(t *testing.T) {
	result, err := Apply(order(1_000_000, 0), 600_000)
	require.NoError(t, err)

	assert.Equal(t, int64(400_000), result.Remaining)
	assert.Equal(t, int64(0), result.ChangeAmount)
	assert.Equal(t, int64(600_000), result.TotalCollected)
	assert.Equal(t, backend.PaymentPartial, result.PaymentStatus)
	assert.Equal(t, backend.OrderPending, result.OrderStatus)
}

func TestApplyOverpaymentReturnsChange(t *testing.T) {
	result, err := Apply(order(1_000_000, 400_000), 700_000)
	require.NoError(t, err)

	// owed was 600k, so 100k comes back as change
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(100_000), result.ChangeAmount)
	assert.Equal(t, int64(600_000), result.PaidNow)
	assert.Equal(t, int64(1_000_000), result.TotalCollected)
	assert.Equal(t, backend.PaymentPaid, result.PaymentStatus)
}

func TestApplyExactRemainder(t *testing.T) {
	result, err := Apply(order(1_000_000, 250_000), 750_000)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(0), result.ChangeAmount)
	assert.Equal(t, backend.PaymentPaid, result.PaymentStatus)
}

func TestApplyRejectsNonPositiveAmounts(t *testing.T) {
	for _, amount := range []int64{0, -1, -1_000_000} {
		_, err := Apply(order(1_000_000, 0), amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %d", amount)
	}
}

func TestApplyRejectsSettledOrder(t *testing.T) {
	o := order(1_000_000, 1_000_000)
	o.PaymentStatus = backend.PaymentPaid
	_, err := Apply(o, 50_000)
	assert.ErrorIs(t, err, ErrAlreadySettled)
}

// The accumulator invariants must hold for every combination, not just the
// hand-picked scenarios: remaining + collected == grandTotal, change is
// never negative, and change implies nothing remains.
func TestApplyInvariants(t *testing.T) {
	grandTotals := []int64{1, 999, 150_000, 1_000_000, 1_250_000_000}
	fractions := []int64{0, 1, 3, 7, 10} // tenths of grand total already paid
	tenders := []int64{1, 500, 99_999, 600_000, 1_000_000, 2_000_000_001}

	for _, gt := range grandTotals {
		for _, f := range fractions {
			paid := gt * f / 10
			o := order(gt, paid)
			if o.Owed() == 0 {
				continue
			}
			for _, tender := range tenders {
				result, err := Apply(o, tender)
				require.NoError(t, err)

				assert.Equal(t, gt, result.Remaining+result.TotalCollected,
					"grandTotal=%d paid=%d tender=%d", gt, paid, tender)
				assert.GreaterOrEqual(t, result.ChangeAmount, int64(0))
				if result.ChangeAmount > 0 {
					assert.Equal(t, int64(0), result.Remaining)
					assert.Equal(t, tender-(gt-paid), result.ChangeAmount)
				}
				if tender < gt-paid {
					assert.Equal(t, gt-paid-tender, result.Remaining)
					assert.Equal(t, backend.PaymentPartial, result.PaymentStatus)
				} else {
					assert.Equal(t, backend.PaymentPaid, result.PaymentStatus)
				}
			}
		}
	}
}
