// Package reports renders service orders as a spreadsheet.
package reports

import (
	"fmt"
	"io"

	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Ordens"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var orderHeader = []string{"ID", "Nota", "Título da nota", "Descrição", "Status", "Administrador", "Aberta em"}

var columnWidths = []float64{8, 8, 30, 50, 15, 20, 18}

// WriteOrders writes orders to w as an .xlsx workbook with a single sheet.
func WriteOrders(w io.Writer, orders []*models.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 22})
	if err != nil {
		return fmt.Errorf("date style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &orderHeader); err != nil {
		return fmt.Errorf("header row: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(orderHeader))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}

	for i, o := range orders {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		values := []any{o.ID, o.NoteID, o.NoteTitle, o.Description, string(o.Status), o.AdminName, o.CreatedAt}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		dateCell, _ := excelize.CoordinatesToCellName(len(values), row)
		if err := f.SetCellStyle(SheetName, dateCell, dateCell, dateStyle); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
