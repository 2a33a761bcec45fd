package ovd

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the sheet Render writes.
const SheetName = "OVDLA"

// renderColumns is the export header, in order.
var renderColumns = func() []string {
	cols := []string{
		FieldDateUTC, FieldTimeUTC, FieldIMO, FieldEvent,
		FieldVoyageFrom, FieldVoyageTo, FieldVoyageNumber, FieldVoyageLeg, FieldVoyageType,
	}
	cols = append(cols, ConsumptionFields()...)
	return append(cols, FieldMEFuelBDN, FieldAEFuelBDN)
}()

// RenderColumns returns the header Render writes.
func RenderColumns() []string {
	out := make([]string, len(renderColumns))
	copy(out, renderColumns)
	return out
}

// Render writes entries as an OVDLA workbook, one row per entry. Cells that
// do not apply to an entry are left empty.
func Render(entries []Entry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	colIndex := make(map[string]int, len(renderColumns))
	for i, name := range renderColumns {
		colIndex[name] = i + 1
		if err := setText(f, i+1, 1, name); err != nil {
			return nil, err
		}
	}

	for i, e := range entries {
		row := i + 2
		d, ok := dimensionFor(e)
		if !ok {
			return nil, fmt.Errorf("entry %d: no column for %s/%s", i+1, e.EngineType, e.FuelType)
		}

		texts := map[string]string{
			FieldIMO:          e.IMO,
			FieldEvent:        e.Event,
			FieldVoyageFrom:   e.DeparturePort,
			FieldVoyageTo:     e.ArrivalPort,
			FieldVoyageNumber: e.VoyageNumber,
			FieldVoyageLeg:    e.VoyageLeg,
			FieldVoyageType:   e.VoyageType,
		}
		if !e.ConsumptionDate.IsZero() {
			texts[FieldDateUTC] = e.ConsumptionDate.Format(DateLayout)
		}
		if d.BDNField != "" {
			texts[d.BDNField] = e.BunkerDeliveryNote
		}
		for name, v := range texts {
			if v == "" {
				continue
			}
			if err := setText(f, colIndex[name], row, v); err != nil {
				return nil, err
			}
		}

		cell, err := excelize.CoordinatesToCellName(colIndex[d.Field], row)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellFloat(SheetName, cell, d.amount(e), -1, 64); err != nil {
			return nil, fmt.Errorf("write %s: %w", cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setText(f *excelize.File, col, row int, v string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellStr(SheetName, cell, v); err != nil {
		return fmt.Errorf("write %s: %w", cell, err)
	}
	return nil
}
