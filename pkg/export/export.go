// Package export renders a solved schedule for end users, as CSV for
// spreadsheets and as a tabular PDF.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// SessionRow is one scheduled session ready for rendering. Weeks and periods
// follow the wire convention (0-based).
type SessionRow struct {
	CourseID      string
	SessionNumber int
	Week          int
	Day           string
	PeriodStart   int
	PeriodLength  int
	RoomID        string
	InstructorID  string
}

var headers = []string{"course_id", "session", "week", "day", "period_start", "period_length", "room_id", "instructor_id"}

func sortRows(rows []SessionRow) []SessionRow {
	sorted := append([]SessionRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.PeriodStart != b.PeriodStart {
			return a.PeriodStart < b.PeriodStart
		}
		return a.CourseID < b.CourseID
	})
	return sorted
}

func (r SessionRow) record() []string {
	return []string{
		r.CourseID,
		strconv.Itoa(r.SessionNumber),
		strconv.Itoa(r.Week),
		r.Day,
		strconv.Itoa(r.PeriodStart),
		strconv.Itoa(r.PeriodLength),
		r.RoomID,
		r.InstructorID,
	}
}

// CSV renders the sessions as CSV bytes ordered by week, day and period.
func CSV(rows []SessionRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range sortRows(rows) {
		if err := writer.Write(row.record()); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF renders the sessions as a tabular PDF document with an optional title.
func PDF(rows []SessionRow, title string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(headers))
	for _, header := range headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range sortRows(rows) {
		for _, value := range row.record() {
			pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
