package fetcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/soopfest/balloonwatch/internal/record"
)

// Grid cell positions in the dashboard's row markup. Column 1 is the row
// number, column 6 a status glyph; neither carries data.
const (
	colDate   = 2
	colDonor  = 3
	colAmount = 4
	colMsg    = 5
	colTarget = 7
)

const gridRowSelector = ".tui-grid-rside-area .tui-grid-body-area .tui-grid-table tr"

// RowsFromHTML scrapes donation records out of the rendered grid. Rows
// missing a date or amount cell are skipped.
func RowsFromHTML(html string, now time.Time) []record.Donation {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []record.Donation
	doc.Find(gridRowSelector).Each(func(_ int, row *goquery.Selection) {
		cell := func(idx int) string {
			sel := row.Find(fmt.Sprintf("td:nth-child(%d) .tui-grid-cell-content", idx)).First()
			return strings.TrimSpace(sel.Text())
		}

		d, ok := record.FromRow(cell(colDate), cell(colDonor), cell(colAmount), cell(colMsg), cell(colTarget), now)
		if !ok {
			return
		}
		out = append(out, d)
	})
	return out
}
