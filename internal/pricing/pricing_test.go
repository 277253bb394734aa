package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeLine(t *testing.T) {
	line := ComputeLine(dec("10"), dec("2500"), dec("5"), dec("18"))
	require.True(t, line.Gross.Equal(dec("25000")))
	require.True(t, line.Discount.Equal(dec("1250")))
	require.True(t, line.Net.Equal(dec("23750")))
	require.True(t, line.Tax.Equal(dec("4275")))
	require.True(t, line.Total.Equal(dec("28025")))

	line = ComputeLine(dec("5"), dec("850"), dec("0"), dec("18"))
	require.True(t, line.Net.Equal(dec("4250")))
	require.True(t, line.Tax.Equal(dec("765")))
	require.True(t, line.Total.Equal(dec("5015")))
}

func TestComputeLineZeroInputs(t *testing.T) {
	line := ComputeLine(decimal.Zero, dec("100"), dec("10"), dec("18"))
	require.True(t, line.Total.IsZero())

	line = ComputeLine(dec("3"), decimal.Zero, dec("10"), dec("18"))
	require.True(t, line.Total.IsZero())
}

func TestComputeLineFullDiscount(t *testing.T) {
	line := ComputeLine(dec("4"), dec("250"), dec("100"), dec("18"))
	require.True(t, line.Net.IsZero())
	require.True(t, line.Tax.IsZero())
	require.True(t, line.Total.IsZero())
}

func TestComputeDocument(t *testing.T) {
	lines := []LineAmounts{
		ComputeLine(dec("10"), dec("2500"), dec("5"), dec("18")),
		ComputeLine(dec("5"), dec("850"), dec("0"), dec("18")),
	}
	doc := ComputeDocument(lines)
	require.True(t, doc.Subtotal.Equal(dec("28000")))
	require.True(t, doc.Tax.Equal(dec("5040")))
	require.True(t, doc.Total.Equal(dec("33040")))

	// Line totals must reconcile with document totals.
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Total)
	}
	require.True(t, sum.Equal(doc.Total))
}

func TestMonotonicity(t *testing.T) {
	base := ComputeLine(dec("10"), dec("100"), dec("10"), dec("18"))

	moreQty := ComputeLine(dec("11"), dec("100"), dec("10"), dec("18"))
	require.True(t, moreQty.Total.GreaterThanOrEqual(base.Total))

	higherPrice := ComputeLine(dec("10"), dec("110"), dec("10"), dec("18"))
	require.True(t, higherPrice.Total.GreaterThanOrEqual(base.Total))

	moreDiscount := ComputeLine(dec("10"), dec("100"), dec("20"), dec("18"))
	require.True(t, moreDiscount.Total.LessThanOrEqual(base.Total))
}

func TestRoundingOnlyAtBoundary(t *testing.T) {
	// Three lines whose unrounded thirds would accumulate drift if rounded
	// per line before summing.
	lines := []LineAmounts{
		ComputeLine(dec("1"), dec("10"), dec("0"), dec("33.333")),
		ComputeLine(dec("1"), dec("10"), dec("0"), dec("33.333")),
		ComputeLine(dec("1"), dec("10"), dec("0"), dec("33.333")),
	}
	doc := ComputeDocument(lines)
	require.True(t, doc.Total.Equal(doc.Subtotal.Add(doc.Tax)))
	require.True(t, Round2(doc.Tax).Equal(dec("10.00")))
}

func TestRound2(t *testing.T) {
	require.True(t, Round2(dec("1.005")).Equal(dec("1.01")))
	require.True(t, Round2(dec("1.004")).Equal(dec("1.00")))
}
