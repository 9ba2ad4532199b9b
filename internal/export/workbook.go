// Package export renders calendar views as XLSX workbooks.
package export

import (
	"fmt"
	"sort"
	"time"

	"staybook/internal/calendar"
	"staybook/internal/filter"
	"staybook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	GridSheet = "Calendar"
	ListSheet = "Bookings"
)

var statusFill = map[models.Status]string{
	models.StatusPending:   "#FFEB9C",
	models.StatusConfirmed: "#C6EFCE",
	models.StatusCompleted: "#D9D9D9",
	models.StatusCancelled: "#FFC7CE",
}

// MonthWorkbook builds a workbook with a property-by-day grid and a flat list
// of the month's bookings. Properties appear in the given order; bookings on
// properties outside that list get their own rows after it.
func MonthWorkbook(view *models.MonthView, properties []*models.Property, names filter.NameResolver) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(GridSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	days := monthDays(view)
	rows := propertyRows(view, properties)

	w := &gridWriter{f: f, names: names, styles: make(map[string]int)}
	if err := w.writeGrid(view, days, rows, properties); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.writeList(view); err != nil {
		_ = f.Close()
		return nil, err
	}

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

// FileName is the suggested download name for a month export.
func FileName(year int, month time.Month) string {
	return fmt.Sprintf("calendar_%04d-%02d.xlsx", year, int(month))
}

type gridWriter struct {
	f      *excelize.File
	names  filter.NameResolver
	styles map[string]int
}

func (w *gridWriter) writeGrid(view *models.MonthView, days []string, rows []string, properties []*models.Property) error {
	f := w.f
	title := time.Date(view.Year, view.Month, 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
	_ = f.SetCellValue(GridSheet, "A1", title)

	lastCol, err := excelize.ColumnNumberToName(len(days) + 1)
	if err != nil {
		return err
	}
	_ = f.MergeCell(GridSheet, "A1", lastCol+"1")
	if style, err := w.style("title", &excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err == nil {
		_ = f.SetCellStyle(GridSheet, "A1", "A1", style)
	}

	header, _ := w.style("header", &excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, d := range days {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(GridSheet, cell, d[8:])
		_ = f.SetCellStyle(GridSheet, cell, cell, header)
	}

	label := make(map[string]string, len(properties))
	for _, p := range properties {
		label[p.ID] = p.Name
	}

	rowHeader, _ := w.style("row", &excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for r, propertyID := range rows {
		row := r + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		name := label[propertyID]
		if name == "" {
			name = propertyID
		}
		_ = f.SetCellValue(GridSheet, cell, name)
		_ = f.SetCellStyle(GridSheet, cell, cell, rowHeader)

		for i, d := range days {
			var shown []*models.Booking
			for _, b := range view.DayBuckets[d] {
				if b.PropertyID == propertyID {
					shown = append(shown, b)
				}
			}
			if len(shown) == 0 {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+2, row)
			_ = f.SetCellValue(GridSheet, cell, w.cellText(shown))
			if style, err := w.statusStyle(shown[len(shown)-1].Status); err == nil {
				_ = f.SetCellStyle(GridSheet, cell, cell, style)
			}
		}
	}

	totals := len(rows) + 3
	cell, _ := excelize.CoordinatesToCellName(1, totals)
	_ = f.SetCellValue(GridSheet, cell, "Booked")
	_ = f.SetCellStyle(GridSheet, cell, cell, header)
	occupancy := calendar.Occupancy(view)
	for i, d := range days {
		cell, _ := excelize.CoordinatesToCellName(i+2, totals)
		_ = f.SetCellValue(GridSheet, cell, occupancy[d])
	}

	_ = f.SetColWidth(GridSheet, "A", "A", 25)
	_ = f.SetColWidth(GridSheet, "B", lastCol, 14)
	return nil
}

func (w *gridWriter) writeList(view *models.MonthView) error {
	f := w.f
	if _, err := f.NewSheet(ListSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	headers := []interface{}{"ID", "Property", "Customer", "Check-in", "Check-out", "Nights", "Guests", "Status", "Total", "Paid", "Notes"}
	if err := f.SetSheetRow(ListSheet, "A1", &headers); err != nil {
		return err
	}

	for i, b := range monthBookings(view) {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			b.ID,
			w.propertyName(b.PropertyID),
			w.customerName(b.CustomerID),
			b.StartDate.Format(models.DateLayout),
			b.EndDate.Format(models.DateLayout),
			b.Interval().Nights(),
			b.GuestCount,
			b.Status.String(),
			b.TotalAmount,
			b.AmountPaid,
			b.Notes,
		}
		if err := f.SetSheetRow(ListSheet, cell, &row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(ListSheet, "A", "A", 38)
	_ = f.SetColWidth(ListSheet, "B", "C", 22)
	return nil
}

func (w *gridWriter) cellText(bookings []*models.Booking) string {
	var text string
	for i, b := range bookings {
		if i > 0 {
			text += "\n"
		}
		text += fmt.Sprintf("%s (%s)", w.customerName(b.CustomerID), b.Status)
	}
	return text
}

func (w *gridWriter) customerName(id string) string {
	if w.names != nil {
		if name := w.names.CustomerName(id); name != "" {
			return name
		}
	}
	return id
}

func (w *gridWriter) propertyName(id string) string {
	if w.names != nil {
		if name := w.names.PropertyName(id); name != "" {
			return name
		}
	}
	return id
}

func (w *gridWriter) statusStyle(status models.Status) (int, error) {
	color, ok := statusFill[status]
	if !ok {
		color = "#FFFFFF"
	}
	return w.style("status:"+string(status), &excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}

func (w *gridWriter) style(key string, s *excelize.Style) (int, error) {
	if id, ok := w.styles[key]; ok {
		return id, nil
	}
	id, err := w.f.NewStyle(s)
	if err != nil {
		return 0, err
	}
	w.styles[key] = id
	return id, nil
}

func monthDays(view *models.MonthView) []string {
	first, last := calendar.MonthBounds(view.Year, view.Month)
	days := make([]string, 0, last.Day())
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(models.DateLayout))
	}
	return days
}

func propertyRows(view *models.MonthView, properties []*models.Property) []string {
	seen := make(map[string]bool, len(properties))
	rows := make([]string, 0, len(properties))
	for _, p := range properties {
		if !seen[p.ID] {
			seen[p.ID] = true
			rows = append(rows, p.ID)
		}
	}

	var extra []string
	for _, b := range monthBookings(view) {
		if !seen[b.PropertyID] {
			seen[b.PropertyID] = true
			extra = append(extra, b.PropertyID)
		}
	}
	sort.Strings(extra)
	return append(rows, extra...)
}

// monthBookings flattens the buckets into a deduplicated, list-sorted slice.
func monthBookings(view *models.MonthView) []*models.Booking {
	seen := make(map[string]bool)
	var out []*models.Booking
	for _, bucket := range view.DayBuckets {
		for _, b := range bucket {
			if !seen[b.ID] {
				seen[b.ID] = true
				out = append(out, b)
			}
		}
	}
	return calendar.SortForList(out)
}
