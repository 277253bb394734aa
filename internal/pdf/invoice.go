// Package pdf renders sales invoices as printable A4 documents. It is a
// pure presentation layer: amounts arrive already computed and rounded.
package pdf

import (
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/stockpilot/stockpilot/internal/sales"
)

var (
	colorInk   = &props.Color{Red: 33, Green: 53, Blue: 85}
	colorMuted = &props.Color{Red: 110, Green: 110, Blue: 110}
)

// Business is the seller identity printed on every invoice.
type Business struct {
	Name    string
	Address string
	Phone   string
	Email   string
	GSTIN   string
}

// Renderer turns an invoice into PDF bytes.
type Renderer struct {
	business Business
	printer  *message.Printer
}

func NewRenderer(business Business) *Renderer {
	return &Renderer{
		business: business,
		printer:  message.NewPrinter(language.MustParse("en-IN")),
	}
}

// Render produces the invoice document. The invoice must carry its items;
// the customer is the billed party at its current details.
func (r *Renderer) Render(inv sales.Invoice, customer sales.Customer) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Invoice "+inv.InvoiceNumber, true).
		WithAuthor(r.business.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(r.headerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorInk, Thickness: 0.5}))
	m.AddRows(r.partiesRow(customer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorInk, Thickness: 0.3}))

	m.AddRows(itemsHeaderRow())
	for _, item := range inv.Items {
		m.AddRows(r.itemRow(item))
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorInk, Thickness: 0.3}))
	m.AddRows(r.totalsRow(inv))
	m.AddRows(r.footerRows(inv)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return doc.GetBytes(), nil
}

func (r *Renderer) headerRow(inv sales.Invoice) core.Row {
	left := col.New(7).Add(
		text.New(r.business.Name, props.Text{
			Style: fontstyle.Bold, Size: 13, Color: colorInk, Top: 1,
		}),
	)
	if r.business.GSTIN != "" {
		left.Add(text.New("GSTIN: "+r.business.GSTIN, props.Text{
			Size: 9, Top: 9, Color: colorMuted,
		}))
	}

	right := col.New(5).Add(
		text.New("TAX INVOICE", props.Text{
			Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorInk, Top: 1,
		}),
		text.New(inv.InvoiceNumber, props.Text{
			Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
		}),
		text.New("Date: "+inv.InvoiceDate.Format("02/01/2006"), props.Text{
			Size: 8, Align: align.Right, Top: 14, Color: colorMuted,
		}),
	)
	return row.New(18).Add(left, right)
}

func (r *Renderer) partiesRow(customer sales.Customer) core.Row {
	return row.New(20).Add(
		col.New(6).Add(
			text.New("FROM", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorInk, Top: 1,
			}),
			text.New(r.business.Name, props.Text{Size: 9, Top: 6}),
			text.New(fmt.Sprintf("%s | %s",
				orDash(r.business.Address), orDash(r.business.Phone),
			), props.Text{Size: 8, Top: 11, Color: colorMuted}),
		),
		col.New(6).Add(
			text.New("BILL TO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorInk, Top: 1,
			}),
			text.New(customer.Name, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("GSTIN: %s | %s",
				orDash(customer.GSTIN), orDash(customer.Phone),
			), props.Text{Size: 8, Top: 12, Color: colorMuted}),
		),
	)
}

func itemsHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorInk, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Item", 4, align.Left),
		h("Qty", 1, align.Center),
		h("Rate", 2, align.Right),
		h("Disc%", 1, align.Center),
		h("Tax%", 1, align.Center),
		h("Amount", 3, align.Right),
	)
}

func (r *Renderer) itemRow(item sales.InvoiceItem) core.Row {
	name := item.ProductName
	if item.SKU != "" {
		name = item.SKU + "  " + name
	}
	return row.New(7).Add(
		col.New(4).Add(text.New(name, props.Text{
			Size: 8, Align: align.Left, Top: 1, Left: 1,
		})),
		col.New(1).Add(text.New(item.Quantity.String(), props.Text{
			Size: 8, Align: align.Center, Top: 1,
		})),
		col.New(2).Add(text.New(r.money(item.UnitPrice), props.Text{
			Size: 8, Align: align.Right, Top: 1, Right: 1,
		})),
		col.New(1).Add(text.New(item.DiscountPercent.String(), props.Text{
			Size: 8, Align: align.Center, Top: 1,
		})),
		col.New(1).Add(text.New(item.TaxRate.String(), props.Text{
			Size: 8, Align: align.Center, Top: 1,
		})),
		col.New(3).Add(text.New(r.money(item.TotalPrice), props.Text{
			Size: 8, Align: align.Right, Top: 1, Right: 1,
		})),
	)
}

func (r *Renderer) totalsRow(inv sales.Invoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}

	labels := col.New(5).Add(label("Subtotal:"), label("Tax:"))
	values := col.New(3).Add(value(r.money(inv.Subtotal)), value(r.money(inv.TaxAmount)))
	labels.Add(text.New("TOTAL:", props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorInk, Right: 2, Top: 12,
	}))
	values.Add(text.New(r.money(inv.TotalAmount), props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorInk, Right: 1, Top: 12,
	}))
	return row.New(20).Add(col.New(4), labels, values)
}

func (r *Renderer) footerRows(inv sales.Invoice) []core.Row {
	rows := []core.Row{line.NewRow(3)}

	outstanding := inv.TotalAmount.Sub(inv.PaidAmount)
	if outstanding.IsPositive() && inv.Status != sales.StatusCancelled {
		due := "on receipt"
		if inv.DueDate != nil {
			due = "by " + inv.DueDate.Format("02/01/2006")
		}
		rows = append(rows, row.New(6).Add(col.New(12).Add(
			text.New(fmt.Sprintf("Balance due: %s, payable %s", r.money(outstanding), due), props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorInk, Top: 1,
			}),
		)))
	}

	if inv.Notes != "" {
		rows = append(rows, row.New(8).Add(col.New(12).Add(
			text.New("Notes: "+inv.Notes, props.Text{Size: 7.5, Color: colorMuted, Top: 1}),
		)))
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New("This is a computer-generated invoice.", props.Text{
			Size: 6.5, Color: colorMuted, Top: 3, Align: align.Center,
		}),
	)))
	return rows
}

// money formats a rounded amount with Indian digit grouping.
func (r *Renderer) money(d decimal.Decimal) string {
	f, _ := d.Float64()
	return "Rs. " + r.printer.Sprintf("%v", number.Decimal(f,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
