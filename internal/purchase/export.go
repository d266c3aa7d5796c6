package purchase

import (
	"bytes"
	"fmt"

	"kasa-backend/internal/models"
	"kasa-backend/internal/pricing"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Alımlar"
	itemsSheet   = "Kalemler"
)

var (
	summaryHeaders = []string{"Alım ID", "Tarih", "Tedarikçi", "Fatura No", "Kalem", "Toplam", "Not"}
	itemHeaders    = []string{"Alım ID", "Tarih", "Ürün", "Miktar", "Alım Birimi", "Katsayı", "Temel Miktar", "Birim Maliyet", "Tutar"}
)

// ExportXLSX: alım listesini iki sayfalı bir çalışma kitabına yazar.
// unitNames birim adlarını çözmek için kullanılır, bulunamayan ID olduğu gibi yazılır.
func ExportXLSX(purchases []models.Purchase, unitNames map[uint]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("sayfa adı verilemedi: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("sayfa oluşturulamadı: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}

	if err := writeHeader(f, summarySheet, summaryHeaders, bold); err != nil {
		return nil, err
	}
	if err := writeHeader(f, itemsSheet, itemHeaders, bold); err != nil {
		return nil, err
	}

	summaryRow, itemRow := 2, 2
	totals := make([]float64, 0, len(purchases))
	for _, p := range purchases {
		supplier := ""
		if p.Supplier != nil {
			supplier = p.Supplier.Name
		}
		date := p.Date.Format("2006-01-02")

		if err := setRow(f, summarySheet, summaryRow, []any{
			p.ID, date, supplier, p.InvoiceNumber, len(p.Items), p.TotalAmount, p.Note,
		}); err != nil {
			return nil, err
		}
		summaryRow++
		totals = append(totals, p.TotalAmount)

		for _, it := range p.Items {
			unit, ok := unitNames[it.PurchaseUnitID]
			if !ok {
				unit = fmt.Sprintf("#%d", it.PurchaseUnitID)
			}
			if err := setRow(f, itemsSheet, itemRow, []any{
				p.ID, date, it.Product.Name, it.Quantity, unit, it.ConversionFactor,
				it.Quantity * it.ConversionFactor, it.UnitCost, it.TotalCost,
			}); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	// Genel toplam
	if err := f.SetCellValue(summarySheet, fmt.Sprintf("E%d", summaryRow), "Genel Toplam"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(summarySheet, fmt.Sprintf("F%d", summaryRow), pricing.SumMoney(totals...)); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("E%d", summaryRow), fmt.Sprintf("F%d", summaryRow), bold); err != nil {
		return nil, err
	}

	if err := f.SetCellStyle(summarySheet, "F2", fmt.Sprintf("F%d", max(summaryRow-1, 2)), money); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(itemsSheet, "H2", fmt.Sprintf("I%d", max(itemRow-1, 2)), money); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summarySheet, "B", "G", 16)
	_ = f.SetColWidth(itemsSheet, "C", "C", 30)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx yazılamadı: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
