// Package export renders device inventories as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/ecoenergy/eco-energy/internal/database/models"
	"github.com/xuri/excelize/v2"
)

const (
	DevicesSheet     = "Devices"
	XLSXContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	deviceTimeLayout = "2006-01-02 15:04:05"
)

var DeviceHeader = []string{
	"Name",
	"Organization",
	"Zone",
	"Product",
	"SKU",
	"Serial Number",
	"Max Power (W)",
	"Status",
	"Created At",
}

var deviceColumnWidths = []float64{28, 24, 20, 28, 18, 20, 14, 10, 20}

// Devices builds an xlsx workbook with one row per device. Relations that
// were not preloaded are left blank.
func Devices(devices []models.Device) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DevicesSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E2F0D9"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, header := range DeviceHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(DevicesSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(DevicesSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(DevicesSheet, col, col, deviceColumnWidths[i]); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i := range devices {
		row := deviceRow(&devices[i])
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(DevicesSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(DevicesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func deviceRow(d *models.Device) []interface{} {
	var org, zone, product, sku string
	if d.Organization != nil {
		org = d.Organization.Name
	}
	if d.Zone != nil {
		zone = d.Zone.Name
	}
	if d.Product != nil {
		product = d.Product.Name
		sku = d.Product.SKU
	}
	return []interface{}{
		d.Name,
		org,
		zone,
		product,
		sku,
		d.SerialNumber,
		d.MaxPowerW,
		string(d.Status),
		d.CreatedAt.UTC().Format(deviceTimeLayout),
	}
}
