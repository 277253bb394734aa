package docnum

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	n, err := Next(KindInvoice, "INV0009")
	require.NoError(t, err)
	require.Equal(t, "INV0010", n)

	n, err = Next(KindInvoice, "")
	require.NoError(t, err)
	require.Equal(t, "INV0001", n)

	n, err = Next(KindPurchaseOrder, "PO0099")
	require.NoError(t, err)
	require.Equal(t, "PO0100", n)

	n, err = Next(KindQuotation, "QT0001")
	require.NoError(t, err)
	require.Equal(t, "QT0002", n)
}

func TestNextPastPadding(t *testing.T) {
	n, err := Next(KindInvoice, "INV9999")
	require.NoError(t, err)
	require.Equal(t, "INV10000", n)

	n, err = Next(KindInvoice, "INV10000")
	require.NoError(t, err)
	require.Equal(t, "INV10001", n)
}

func TestNextMalformed(t *testing.T) {
	_, err := Next(KindInvoice, "INV-ABC")
	require.Error(t, err)
}

func TestUnknownKind(t *testing.T) {
	_, err := Next(Kind("RECEIPT"), "RC0001")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestFirst(t *testing.T) {
	n, err := First(KindQuotation)
	require.NoError(t, err)
	require.Equal(t, "QT0001", n)
}
