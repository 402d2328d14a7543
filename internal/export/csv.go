// Package export renders transactions for download.
package export

import (
	"bufio"
	"io"
	"strings"
	"time"

	"budget/internal/core"
)

// ContentType is the media type of WriteCSV output.
const ContentType = "text/csv;charset=utf-8"

var header = []string{"Date", "Type", "Category", "Amount", "Description"}

// WriteCSV writes one row per transaction after a header row. Rows are
// separated by "\n" with no trailing newline. Descriptions are always
// quoted; the other columns never contain separators.
func WriteCSV(w io.Writer, transactions []core.Transaction) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(header, ","))
	for _, t := range transactions {
		bw.WriteByte('\n')
		bw.WriteString(strings.Join([]string{
			t.Date.String(),
			string(t.Type),
			string(t.Category),
			t.Amount.String(),
			quote(t.Description),
		}, ","))
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FileName is the download name of an export made at now.
func FileName(now time.Time) string {
	return "transactions-" + now.Format(core.DateLayout) + ".csv"
}
