// Package pricing implements document line and total calculations shared by
// invoices, quotations and purchase orders.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineAmounts holds the monetary breakdown of a single document line.
// All values are unrounded; apply Round2 only at persistence or display.
type LineAmounts struct {
	Gross    decimal.Decimal
	Discount decimal.Decimal
	Net      decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// DocumentAmounts aggregates line amounts at document level.
type DocumentAmounts struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeLine calculates the amounts for one line. Inputs are assumed
// non-negative with discountPct and taxRate in [0,100]; callers validate
// before reaching this function. Zero quantity or price yields zero amounts.
func ComputeLine(quantity, unitPrice, discountPct, taxRate decimal.Decimal) LineAmounts {
	gross := quantity.Mul(unitPrice)
	discount := gross.Mul(discountPct).Div(hundred)
	net := gross.Sub(discount)
	tax := net.Mul(taxRate).Div(hundred)
	return LineAmounts{
		Gross:    gross,
		Discount: discount,
		Net:      net,
		Tax:      tax,
		Total:    net.Add(tax),
	}
}

// ComputeDocument sums line amounts. Subtotal is post-discount pre-tax and
// Total == Subtotal + Tax holds exactly because no intermediate rounding
// takes place.
func ComputeDocument(lines []LineAmounts) DocumentAmounts {
	var doc DocumentAmounts
	for _, line := range lines {
		doc.Subtotal = doc.Subtotal.Add(line.Net)
		doc.Tax = doc.Tax.Add(line.Tax)
	}
	doc.Total = doc.Subtotal.Add(doc.Tax)
	return doc
}

// Round2 rounds to two decimal places, half away from zero. Used only at
// the persistence and presentation boundaries.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
