package document

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/geocoder89/shiftreports/internal/domain/report"
	"github.com/geocoder89/shiftreports/internal/domain/user"
)

func testUser() user.User {
	name := "Jane Field"
	return user.User{ID: "u1", Email: "jane@example.com", FullName: &name, Role: user.RoleUser, IsActive: true}
}

func makeReports(n int) []report.Report {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]report.Report, 0, n)

	// newest first, like the store returns them
	for i := n - 1; i >= 0; i-- {
		out = append(out, report.Report{
			ID:              fmt.Sprintf("r%03d", i),
			UserID:          "u1",
			ShiftTiming:     "Morning",
			PaymentReceived: i%2 == 0,
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
			Client: client.Client{
				ID:      "c1",
				Name:    fmt.Sprintf("Client %03d", i),
				Phone:   "555-0100",
				Address: "1 Main St",
			},
		})
	}
	return out
}

func TestLayout_NoReports(t *testing.T) {
	c := NewCompiler("")
	l := c.Layout(testUser(), nil)

	if len(l.Pages) != 1 {
		t.Fatalf("expected a single page, got %d", len(l.Pages))
	}
	if l.RowCount() != 0 {
		t.Fatalf("expected no data rows, got %d", l.RowCount())
	}
	if l.Title != "MHP Reporting - Jane Field" {
		t.Fatalf("unexpected title %q", l.Title)
	}

	pdf := c.render(l, stampFor(nil))
	if pdf.PageCount() != 1 {
		t.Fatalf("expected 1 rendered page, got %d", pdf.PageCount())
	}
}

func TestCompile_NoReportsStillProducesPDF(t *testing.T) {
	out, err := NewCompiler("MHP Reporting").Compile(testUser(), []report.Report{})
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", out[:min(len(out), 8)])
	}
}

func TestLayout_TitleFallsBackToEmail(t *testing.T) {
	u := testUser()
	u.FullName = nil

	l := NewCompiler("Shifts").Layout(u, nil)
	if l.Title != "Shifts - jane@example.com" {
		t.Fatalf("unexpected title %q", l.Title)
	}
}

func TestLayout_PaginatesWithoutLosingRows(t *testing.T) {
	reports := makeReports(120)
	c := NewCompiler("")
	l := c.Layout(testUser(), reports)

	if len(l.Pages) < 2 {
		t.Fatalf("expected at least 2 pages, got %d", len(l.Pages))
	}
	if got := len(l.Pages[0].Rows); got != 46 {
		t.Fatalf("expected 46 rows on the first page, got %d", got)
	}
	if got := len(l.Pages[1].Rows); got != 51 {
		t.Fatalf("expected 51 rows on a continuation page, got %d", got)
	}

	rows := l.Rows()
	if len(rows) != len(reports) {
		t.Fatalf("expected %d rows, got %d", len(reports), len(rows))
	}
	for i, r := range reports {
		if rows[i].Client != r.Client.Name {
			t.Fatalf("row %d out of order: got %s want %s", i, rows[i].Client, r.Client.Name)
		}
	}

	for pi, p := range l.Pages {
		for _, r := range p.Rows {
			if r.Y > pageHeight-bottomMargin+epsilon {
				t.Fatalf("page %d row placed below the bottom margin at y=%v", pi, r.Y)
			}
		}
	}

	pdf := c.render(l, stampFor(reports))
	if pdf.PageCount() != len(l.Pages) {
		t.Fatalf("rendered %d pages, layout has %d", pdf.PageCount(), len(l.Pages))
	}
	if err := pdf.Error(); err != nil {
		t.Fatalf("render error: %v", err)
	}
}

func TestRow_Formatting(t *testing.T) {
	c := NewCompiler("")
	long := strings.Repeat("x", 80)

	r := c.row(report.Report{
		ShiftTiming:     "Evening",
		PaymentReceived: false,
		CreatedAt:       time.Date(2024, 5, 6, 17, 45, 59, 0, time.UTC),
		Client:          client.Client{Name: "Client A", Phone: "123", Address: long},
	})

	if r.Date != "2024-05-06 17:45" {
		t.Fatalf("unexpected date %q", r.Date)
	}
	if len([]rune(r.Address)) != MaxAddressLen {
		t.Fatalf("expected address truncated to %d, got %d", MaxAddressLen, len(r.Address))
	}
	if r.Payment != "No" || PaymentLabel(true) != "Yes" {
		t.Fatalf("unexpected payment labels")
	}
}

func TestTruncate_RuneSafe(t *testing.T) {
	got := truncate("Café Straße", 4)
	if got != "Café" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}
