// Package document turns a user's pending reports into a paginated PDF table.
// It does no I/O beyond writing to memory; the same inputs give the same layout.
package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/domain/user"
	"github.com/go-pdf/fpdf"
)

const (
	ContentType = "application/pdf"

	// all geometry is in points on a US Letter page, y grows downwards
	pageHeight   = 792.0
	inch         = 72.0
	titleY       = 1 * inch
	headerY      = 1.5 * inch
	ruleGap      = 0.2 * inch
	firstRowGap  = 0.15 * inch
	rowStep      = 0.18 * inch
	bottomMargin = 1 * inch
	topOfPage    = 1 * inch
	epsilon      = 1e-6

	// MaxAddressLen is where the address column is cut so it does not run into Shift.
	MaxAddressLen = 35

	dateLayout = "2006-01-02 15:04"
)

var (
	Header  = []string{"Date", "Client", "Phone", "Address", "Shift", "Payment"}
	columnX = []float64{1 * inch, 2.2 * inch, 3.4 * inch, 4.6 * inch, 6.3 * inch, 7.3 * inch}
)

type Row struct {
	Date    string
	Client  string
	Phone   string
	Address string
	Shift   string
	Payment string
}

func (r Row) cells() []string {
	return []string{r.Date, r.Client, r.Phone, r.Address, r.Shift, r.Payment}
}

type placedRow struct {
	Row
	Y float64
}

type Page struct {
	Rows []placedRow
}

// Layout is the fully positioned document before rendering. Only the first
// page carries the title and column header.
type Layout struct {
	Title string
	Pages []Page
}

func (l Layout) RowCount() int {
	n := 0
	for _, p := range l.Pages {
		n += len(p.Rows)
	}
	return n
}

// Rows flattens the layout back into document order.
func (l Layout) Rows() []Row {
	out := make([]Row, 0, l.RowCount())
	for _, p := range l.Pages {
		for _, r := range p.Rows {
			out = append(out, r.Row)
		}
	}
	return out
}

type Compiler struct {
	titlePrefix string
	loc         *time.Location
}

func NewCompiler(titlePrefix string) *Compiler {
	if titlePrefix == "" {
		titlePrefix = "MHP Reporting"
	}
	return &Compiler{titlePrefix: titlePrefix, loc: time.UTC}
}

func PaymentLabel(received bool) string {
	if received {
		return "Yes"
	}
	return "No"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func (c *Compiler) row(r report.Report) Row {
	return Row{
		Date:    r.CreatedAt.In(c.loc).Format(dateLayout),
		Client:  r.Client.Name,
		Phone:   r.Client.Phone,
		Address: truncate(r.Client.Address, MaxAddressLen),
		Shift:   r.ShiftTiming,
		Payment: PaymentLabel(r.PaymentReceived),
	}
}

// Layout places every report, in the given order, on pages.
func (c *Compiler) Layout(u user.User, reports []report.Report) Layout {
	l := Layout{
		Title: fmt.Sprintf("%s - %s", c.titlePrefix, u.DisplayName()),
		Pages: []Page{{}},
	}

	y := headerY + ruleGap + firstRowGap

	for _, r := range reports {
		if y > pageHeight-bottomMargin+epsilon {
			l.Pages = append(l.Pages, Page{})
			y = topOfPage
		}

		last := &l.Pages[len(l.Pages)-1]
		last.Rows = append(last.Rows, placedRow{Row: c.row(r), Y: y})
		y += rowStep
	}

	return l
}

// Compile renders the reports to PDF bytes.
func (c *Compiler) Compile(u user.User, reports []report.Report) ([]byte, error) {
	pdf := c.render(c.Layout(u, reports), stampFor(reports))

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return buf.Bytes(), nil
}

// stampFor pins the PDF creation date to the inputs so output does not depend on the clock.
func stampFor(reports []report.Report) time.Time {
	var newest time.Time
	for _, r := range reports {
		if r.CreatedAt.After(newest) {
			newest = r.CreatedAt
		}
	}
	if newest.IsZero() {
		newest = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return newest
}

func (c *Compiler) render(l Layout, stamp time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, page := range l.Pages {
		pdf.AddPage()

		if i == 0 {
			pdf.SetFont("Helvetica", "B", 16)
			pdf.Text(1*inch, titleY, tr(l.Title))

			pdf.SetFont("Helvetica", "", 10)
			for col, h := range Header {
				pdf.Text(columnX[col], headerY, h)
			}
			pdf.Line(0.8*inch, headerY+ruleGap, 8*inch, headerY+ruleGap)
		}

		pdf.SetFont("Helvetica", "", 10)
		for _, r := range page.Rows {
			for col, cell := range r.cells() {
				pdf.Text(columnX[col], r.Y, tr(cell))
			}
		}
	}

	return pdf
}
