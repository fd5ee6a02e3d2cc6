package triage

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	domain "github.com/altsecops/findings-console/internal/domain/findings"
)

// ExportFilename is the fixed name of the delimited export.
const ExportFilename = "findings-export.csv"

// exportHeader is written verbatim as the first line.
const exportHeader = "id,title,severity,status,product,filePath,line,date,aiVerdict"

// ExportCSV serializes the materialized view to delimited text. It exports
// exactly what is loaded and client-filtered right now, never the full
// server-side result set. Every data field is wrapped in double quotes with
// literal quotes doubled. An empty view yields ErrEmptyExport and writes
// nothing to w.
func ExportCSV(view []domain.Enriched, w io.Writer) error {
	if len(view) == 0 {
		return domain.ErrEmptyExport
	}

	// Buffer the whole document so a mid-row write error cannot leave a
	// truncated file behind.
	var buf bytes.Buffer
	buf.WriteString(exportHeader)
	buf.WriteByte('\n')

	for _, e := range view {
		fields := []string{
			strconv.FormatInt(int64(e.ID), 10),
			e.Title,
			string(e.Severity),
			statusLabel(e.Active),
			e.ProductName,
			e.FilePath,
			strconv.Itoa(e.Line),
			formatDate(e),
			string(e.Verdict),
		}
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quoteField(f))
		}
		buf.WriteByte('\n')
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// quoteField wraps a value in double quotes, doubling embedded quotes.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func statusLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func formatDate(e domain.Enriched) string {
	if e.Date == nil {
		return ""
	}
	return e.Date.Format("2006-01-02")
}
