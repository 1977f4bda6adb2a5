package fetcher

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2025, 12, 14, 10, 30, 0, 0, time.Local)

func gridRow(cells ...string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		fmt.Fprintf(&b, `<td><div class="tui-grid-cell-content">%s</div></td>`, c)
	}
	b.WriteString("</tr>")
	return b.String()
}

func gridPage(rows ...string) string {
	return `<html><body>
<div class="tui-grid-rside-area"><div class="tui-grid-body-area"><table class="tui-grid-table"><tbody>` +
		strings.Join(rows, "\n") +
		`</tbody></table></div></div>
</body></html>`
}

func TestRowsFromHTML(t *testing.T) {
	html := gridPage(
		gridRow("1", "2025-12-13 10:00:00", "u1", "1,000", "진우 최고", "", "박진우"),
		gridRow("2", "12-13 10:05:00", "u2", "500", "", "", ""),
	)

	got := RowsFromHTML(html, testNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	if got[0].DonorName != "u1" || got[0].Amount != 1000 || got[0].TargetName != "박진우" {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[0].CreateDate != "2025-12-13 10:00:00" {
		t.Errorf("row 0 date = %q", got[0].CreateDate)
	}

	// Partial dates pick up the current year.
	if got[1].CreateDate != "2025-12-13 10:05:00" {
		t.Errorf("row 1 date = %q", got[1].CreateDate)
	}
	if got[1].Amount != 500 {
		t.Errorf("row 1 amount = %d", got[1].Amount)
	}
}

func TestRowsFromHTML_SkipsIncompleteRows(t *testing.T) {
	html := gridPage(
		gridRow("1", "", "u1", "1000", "", "", ""),                // no date
		gridRow("2", "2025-12-13 10:00:00", "u2", "", "", "", ""), // no amount
		gridRow("3", "2025-12-13 10:00:00", "u3", "300", "", "", ""),
	)

	got := RowsFromHTML(html, testNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].DonorName != "u3" {
		t.Errorf("wrong row survived: %+v", got[0])
	}
}

func TestRowsFromHTML_NoGrid(t *testing.T) {
	if got := RowsFromHTML("<html><body><p>loading</p></body></html>", testNow); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestRowsFromHTML_IgnoresOtherTables(t *testing.T) {
	html := `<html><body>
<table class="tui-grid-table"><tbody>` +
		gridRow("1", "2025-12-13 10:00:00", "decoy", "999", "", "", "") +
		`</tbody></table>
</body></html>`

	if got := RowsFromHTML(html, testNow); len(got) != 0 {
		t.Errorf("rows outside the grid body area leaked through: %d", len(got))
	}
}

func TestLooksLikeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"object", `{"data": [{"userName": "u1"}]}`, true},
		{"array", `[{"userName": "u1", "count": 1}]`, true},
		{"padded", `   {"data": [1,2,3,4,5]}`, true},
		{"html", `<html><body>x</body></html>`, false},
		{"tiny", `{"a":1}`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeJSON([]byte(tt.body)); got != tt.want {
				t.Errorf("looksLikeJSON(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}
