package app

import (
	"bytes"
	"context"
	"fmt"

	"procurement-engine/internal/core"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{"#", "Item", "Category", "Make", "Qty", "Unit", "Rate", "Tax %", "Amount", "Source PO", "Comment"}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportPurchaseOrder renders the PO's lines, totals and payment milestones as XLSX.
func (s *appService) ExportPurchaseOrder(ctx context.Context, id string) (*ExportResult, error) {
	po, err := s.procurement.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := core.RequireCompleteSplit(po.PaymentSplit); err != nil {
		return nil, err
	}

	f, err := renderWorkbook(*po)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("PO_%s.xlsx", po.ID),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

// sheetWriter keeps the first excelize error so a render can be checked once.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(cell string, v any) {
	if w.err == nil {
		w.err = w.f.SetCellValue(w.sheet, cell, v)
	}
}

func (w *sheetWriter) style(from, to string, id int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(w.sheet, from, to, id)
	}
}

func (w *sheetWriter) width(col int, width float64) {
	if w.err != nil {
		return
	}
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetColWidth(w.sheet, name, name, width)
}

func (w *sheetWriter) setRow(row int, values ...any) {
	for i, v := range values {
		if w.err != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			w.err = err
			return
		}
		w.set(cell, v)
	}
}

func renderWorkbook(po core.PurchaseOrder) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Purchase Order"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	summaryStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("summary style: %w", err)
	}

	w := &sheetWriter{f: f, sheet: sheet}
	w.setRow(1, "Purchase Order", po.ID)
	w.setRow(2, "Project", po.ProjectName)
	w.setRow(3, "Vendor", po.VendorName)
	w.setRow(4, "Status", po.Status.String())
	w.style("A1", "A4", summaryStyle)

	headerRow := 6
	headers := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		headers[i] = h
	}
	w.setRow(headerRow, headers...)
	lastHeader, err := excelize.CoordinatesToCellName(len(exportHeaders), headerRow)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header range: %w", err)
	}
	w.style(fmt.Sprintf("A%d", headerRow), lastHeader, headerStyle)

	for i, l := range po.OrderList.Lines {
		w.setRow(headerRow+1+i,
			i+1,
			l.ItemName,
			l.Category,
			l.EnabledMake(),
			l.Quantity.InexactFloat64(),
			l.Unit,
			l.Rate.InexactFloat64(),
			l.TaxRate.InexactFloat64(),
			l.Amount().Round(2).InexactFloat64(),
			l.SourcePoID,
			l.Comment,
		)
	}

	totals := core.ComputeTotals(po.OrderList.Lines, po.Surcharges)
	row := headerRow + len(po.OrderList.Lines) + 2
	summary := []struct {
		label string
		value float64
	}{
		{"Loading", po.Surcharges.Loading.InexactFloat64()},
		{"Freight", po.Surcharges.Freight.InexactFloat64()},
		{"Subtotal", totals.Subtotal.Round(2).InexactFloat64()},
		{"Tax", totals.TaxTotal.Round(2).InexactFloat64()},
		{"Grand Total", totals.GrandTotal.Round(2).InexactFloat64()},
		{"Round Off", totals.RoundOff.Round(2).InexactFloat64()},
		{"Total", totals.RoundedTotal.InexactFloat64()},
	}
	for _, s := range summary {
		w.set(fmt.Sprintf("H%d", row), s.label)
		w.set(fmt.Sprintf("I%d", row), s.value)
		w.style(fmt.Sprintf("H%d", row), fmt.Sprintf("I%d", row), summaryStyle)
		row++
	}

	row++
	w.set(fmt.Sprintf("A%d", row), "Payment Milestones")
	w.style(fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), summaryStyle)
	amounts := core.ComputeMilestoneAmounts(totals.GrandTotal, po.PaymentSplit)
	for i, pct := range po.PaymentSplit {
		row++
		w.setRow(row, fmt.Sprintf("Milestone %d", i+1), pct.InexactFloat64(), amounts[i].Round(2).InexactFloat64())
	}

	for i, width := range []float64{14, 28, 16, 14, 8, 8, 12, 8, 14, 14, 24} {
		w.width(i+1, width)
	}
	if w.err != nil {
		f.Close()
		return nil, fmt.Errorf("render purchase order %s: %w", po.ID, w.err)
	}
	return f, nil
}
