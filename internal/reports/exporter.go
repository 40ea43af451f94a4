package reports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// Table is the format-neutral shape every export is built from.
type Table struct {
	Name    string // file name stem, e.g. "lab_reports"
	Title   string
	Headers []string
	Widths  []float64 // PDF column widths in mm; optional
	Rows    [][]interface{}
}

type File struct {
	Data        []byte
	Filename    string
	ContentType string
}

type Exporter interface {
	Export(format string, t Table) (*File, error)
}

type exporter struct {
	now func() time.Time
}

func NewExporter() Exporter {
	return &exporter{now: time.Now}
}

func (e *exporter) Export(format string, t Table) (*File, error) {
	stamp := e.now().Format("20060102_150405")
	switch strings.ToLower(format) {
	case FormatCSV:
		data, err := exportCSV(t)
		if err != nil {
			return nil, err
		}
		return &File{data, fmt.Sprintf("%s_%s.csv", t.Name, stamp), "text/csv"}, nil
	case FormatExcel, "xlsx", "":
		data, err := exportExcel(t)
		if err != nil {
			return nil, err
		}
		return &File{data, fmt.Sprintf("%s_%s.xlsx", t.Name, stamp), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, nil
	case FormatPDF:
		data, err := exportPDF(t)
		if err != nil {
			return nil, err
		}
		return &File{data, fmt.Sprintf("%s_%s.pdf", t.Name, stamp), "application/pdf"}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func exportCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Headers); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = cellText(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportExcel(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := t.Title
	if sheet == "" || len(sheet) > 31 {
		sheet = "Report"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, style)
	}
	for r, row := range t.Rows {
		for i, v := range row {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			switch v.(type) {
			case int, int64, uint, float64:
				f.SetCellValue(sheet, cell, v)
			default:
				f.SetCellValue(sheet, cell, cellText(v))
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportPDF(t Table) ([]byte, error) {
	orientation := "P"
	if len(t.Headers) > 5 {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(40, 10, tr(t.Title))
	pdf.Ln(12)

	widths := t.Widths
	if len(widths) != len(t.Headers) {
		pageW, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		each := (pageW - left - right) / float64(len(t.Headers))
		widths = make([]float64, len(t.Headers))
		for i := range widths {
			widths[i] = each
		}
	}

	pdf.SetFont("Arial", "B", 10)
	for i, h := range t.Headers {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, row := range t.Rows {
		for i, v := range row {
			pdf.CellFormat(widths[i], 6, tr(cellText(v)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Attach writes f as a download.
func Attach(c *gin.Context, f *File) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", f.Filename))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}
