// Package docnum mints sequential, prefixed document numbers such as
// INV0001 or PO0042. The last-issued number must be read inside the same
// transaction as the document insert so two writers can never mint the same
// number; repositories enforce that with a row-locked read plus a unique
// index as backstop.
package docnum

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a numbered document series.
type Kind string

const (
	KindInvoice       Kind = "INVOICE"
	KindPurchaseOrder Kind = "PURCHASE_ORDER"
	KindQuotation     Kind = "QUOTATION"
)

const width = 4

var prefixes = map[Kind]string{
	KindInvoice:       "INV",
	KindPurchaseOrder: "PO",
	KindQuotation:     "QT",
}

// ErrUnknownKind indicates a document kind without a registered prefix.
var ErrUnknownKind = fmt.Errorf("docnum: unknown document kind")

// Prefix returns the fixed prefix for the kind.
func (k Kind) Prefix() (string, error) {
	p, ok := prefixes[k]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	return p, nil
}

// First returns the initial number of a series, e.g. INV0001.
func First(kind Kind) (string, error) {
	prefix, err := kind.Prefix()
	if err != nil {
		return "", err
	}
	return format(prefix, 1), nil
}

// Next increments the numeric suffix of the last issued number. An empty
// last number starts the series. The suffix is re-padded to four digits and
// grows naturally past 9999.
func Next(kind Kind, last string) (string, error) {
	prefix, err := kind.Prefix()
	if err != nil {
		return "", err
	}
	if last == "" {
		return format(prefix, 1), nil
	}
	suffix := strings.TrimPrefix(last, prefix)
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return "", fmt.Errorf("docnum: malformed number %q: %w", last, err)
	}
	return format(prefix, n+1), nil
}

func format(prefix string, n int64) string {
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}
