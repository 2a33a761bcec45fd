package ovd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// newWorkbook builds an xlsx file whose first sheet holds rows.
func newWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStr(sheet, cell, v))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ============================================================================
// Dictionary
// ============================================================================

func TestLookup_IgnoresCaseWhitespaceAndUnderscores(t *testing.T) {
	tests := []string{
		"ME_Consumption_HFO",
		"me_consumption_hfo",
		"ME Consumption HFO",
		"  Me_Consumption_Hfo ",
		"MECONSUMPTIONHFO",
		"\ufeffME_Consumption_HFO",
	}
	for _, h := range tests {
		t.Run(h, func(t *testing.T) {
			f, ok := Lookup(h)
			require.True(t, ok)
			assert.Equal(t, "ME_Consumption_HFO", f.Name)
			assert.Equal(t, Number, f.Kind)
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("Fuel Grade")
	assert.False(t, ok)
}

func TestFieldIndex_NoNormalizedCollisions(t *testing.T) {
	assert.Len(t, fieldIndex, len(canonicalFields))
	assert.Greater(t, len(canonicalFields), 150)
}

func TestDimensions_AreCanonicalNumberFields(t *testing.T) {
	for _, d := range dimensions {
		f, ok := Lookup(d.Field)
		require.True(t, ok, d.Field)
		assert.Equal(t, Number, f.Kind, d.Field)
		if d.BDNField != "" {
			_, ok := Lookup(d.BDNField)
			assert.True(t, ok, d.BDNField)
		}
	}
}

func TestDerivedKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fuel Grade", "Fuel_Grade"},
		{"  fuel.grade - note ", "fuel_grade_note"},
		{"Sulphur-Content", "Sulphur_Content"},
		{"...", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, derivedKey(tt.in), tt.in)
	}
}

// ============================================================================
// Parse
// ============================================================================

func TestParse_RejectsUnreadableInput(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("this is not a workbook"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
		})
	}
}

func TestParse_HeaderWithoutRows(t *testing.T) {
	data := newWorkbook(t, [][]string{{"Date_UTC", "IMO"}})
	_, err := Parse(data)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Error(), "no data rows")
}

func TestParse_RecordsAndMetadata(t *testing.T) {
	data := newWorkbook(t, [][]string{
		{},
		{"date utc", "IMO", "ME Consumption HFO", "Fuel Grade"},
		{"2024-03-02", "9876543", "12.5", "RMG380"},
		{},
		{"2024-03-01", "9876543", "", ""},
		{"2024-03-05", "1234567", "3", ""},
	})

	res, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, res.Records, 3)
	assert.Equal(t, 3, res.Metadata.RecordCount)
	assert.Equal(t, []string{"9876543", "1234567"}, res.Metadata.Vessels)
	assert.Equal(t, DateRange{Start: "2024-03-01", End: "2024-03-05"}, res.Metadata.DateRange)
	assert.Equal(t, []string{"Fuel_Grade"}, res.Metadata.UnmappedHeaders)

	first := res.Records[0]
	assert.Equal(t, 1, first.Row)
	assert.Equal(t, "2024-03-02", first.Fields[FieldDateUTC])
	assert.Equal(t, "12.5", first.Fields["ME_Consumption_HFO"])
	assert.Equal(t, map[string]string{"Fuel_Grade": "RMG380"}, first.Extra)

	second := res.Records[1]
	assert.Equal(t, 3, second.Row)
	_, reported := second.Get("ME_Consumption_HFO")
	assert.False(t, reported, "blank cells must be absent, not zero")
}

// ============================================================================
// ToEntries
// ============================================================================

func TestToEntries_SingleMainEngineHFO(t *testing.T) {
	rec := Record{Row: 1, Fields: map[string]string{
		FieldDateUTC:         "2024-01-15",
		FieldIMO:             "9876543",
		"ME_Consumption_HFO": "24.75",
		FieldMEFuelBDN:       "BDN-001",
	}}

	entries, err := ToEntries(rec, "voyage-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, EngineMain, e.EngineType)
	assert.Equal(t, FuelHFO, e.FuelType)
	assert.Equal(t, CategoryFossil, e.FuelCategory)
	assert.Equal(t, 24.75, e.ConsumptionTonnes)
	assert.Equal(t, "BDN-001", e.BunkerDeliveryNote)
	assert.Equal(t, "BDN-001", e.FuelSupplier)
	assert.Equal(t, "voyage-1", e.VoyageID)
	assert.Equal(t, day(2024, 1, 15), e.ConsumptionDate)
}

func TestToEntries_MainAndAuxiliary(t *testing.T) {
	rec := Record{Row: 4, Fields: map[string]string{
		FieldDateUTC:         "2024-01-15",
		FieldIMO:             "9876543",
		"ME_Consumption_HFO": "20",
		"AE_Consumption_MGO": "1.2",
		FieldMEFuelBDN:       "BDN-ME",
		FieldAEFuelBDN:       "BDN-AE",
	}}

	entries, err := ToEntries(rec, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, EngineMain, entries[0].EngineType)
	assert.Equal(t, "BDN-ME", entries[0].BunkerDeliveryNote)
	assert.Equal(t, EngineAuxiliary, entries[1].EngineType)
	assert.Equal(t, FuelMGO, entries[1].FuelType)
	assert.Equal(t, "BDN-AE", entries[1].BunkerDeliveryNote)
}

func TestToEntries_BoilerUsesAuxiliaryBDN(t *testing.T) {
	rec := Record{Row: 1, Fields: map[string]string{
		FieldDateUTC:             "2024-01-15",
		"Boiler_Consumption_HFO": "0.8",
		FieldAEFuelBDN:           "BDN-AE",
	}}

	entries, err := ToEntries(rec, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EngineBoiler, entries[0].EngineType)
	assert.Equal(t, "BDN-AE", entries[0].BunkerDeliveryNote)
	assert.Empty(t, entries[0].FuelSupplier)
}

func TestToEntries_ShorePower(t *testing.T) {
	rec := Record{Row: 1, Fields: map[string]string{
		FieldDateUTC:       "2024-01-15",
		FieldShorePowerKWh: "1,500",
	}}

	entries, err := ToEntries(rec, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, FuelGridElectricity, e.FuelType)
	assert.Equal(t, CategoryElectric, e.FuelCategory)
	assert.Equal(t, EnergySourceOPS, e.EnergySourceType)
	assert.Equal(t, 1500.0, e.EnergyKWh)
	assert.Zero(t, e.ConsumptionTonnes)
}

func TestToEntries_NoConsumptionColumns(t *testing.T) {
	rec := Record{Row: 1, Fields: map[string]string{FieldDateUTC: "2024-01-15", "Distance": "300"}}
	entries, err := ToEntries(rec, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestToEntries_InvalidValues(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]string
		wantField string
		wantMsg   string
	}{
		{
			name:      "non-numeric amount",
			fields:    map[string]string{FieldDateUTC: "2024-01-15", "ME_Consumption_HFO": "abc"},
			wantField: "ME_Consumption_HFO",
			wantMsg:   "invalid number",
		},
		{
			name:      "negative amount",
			fields:    map[string]string{FieldDateUTC: "2024-01-15", "AE_Consumption_MGO": "-2"},
			wantField: "AE_Consumption_MGO",
			wantMsg:   "negative amount",
		},
		{
			name:      "missing date",
			fields:    map[string]string{"ME_Consumption_HFO": "2"},
			wantField: FieldDateUTC,
			wantMsg:   "invalid date",
		},
		{
			name:      "partial row is rejected whole",
			fields:    map[string]string{FieldDateUTC: "2024-01-15", "ME_Consumption_HFO": "2", "AE_Consumption_MGO": "n/a"},
			wantField: "AE_Consumption_MGO",
			wantMsg:   "invalid number",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ToEntries(Record{Row: 2, Fields: tt.fields}, "")
			assert.Nil(t, entries)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, 2, fe.Row)
			assert.Equal(t, tt.wantField, fe.Field)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseDate_Layouts(t *testing.T) {
	want := day(2024, 1, 15)
	for _, in := range []string{"2024-01-15", "2024-01-15T10:30:00Z", "2024/01/15", "15.01.2024", "1/15/2024", "45306"} {
		got, err := parseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

// ============================================================================
// Validate
// ============================================================================

func TestValidate_ReportsMissingRequiredFields(t *testing.T) {
	records := []Record{
		{Row: 1, Fields: map[string]string{FieldDateUTC: "2024-01-15", FieldIMO: "9876543"}},
		{Row: 2, Fields: map[string]string{FieldIMO: "9876543"}},
		{Row: 3, Fields: map[string]string{}},
	}
	before := len(records[2].Fields)

	errs := Validate(records)
	require.Len(t, errs, 3)
	assert.Equal(t, RecordError{Row: 2, Field: FieldDateUTC, Message: "required field Date_UTC is missing"}, errs[0])
	assert.Equal(t, 3, errs[1].Row)
	assert.Equal(t, 3, errs[2].Row)
	assert.Len(t, records[2].Fields, before)
}

// ============================================================================
// Render
// ============================================================================

func TestRender_RoundTripsEveryDimension(t *testing.T) {
	base := Entry{
		VoyageID:      "voyage-7",
		IMO:           "9876543",
		VoyageNumber:  "V-2024-07",
		DeparturePort: "NLRTM",
		ArrivalPort:   "SGSIN",
		VoyageLeg:     "2",
		VoyageType:    "LADEN",
	}
	var entries []Entry
	for i, d := range dimensions {
		e := base
		e.ConsumptionDate = day(2024, 2, 1+i)
		e.EngineType = d.Engine
		e.FuelType = d.Fuel
		e.FuelCategory = d.Category
		if d.EnergySource != "" {
			e.EnergySourceType = d.EnergySource
			e.EnergyKWh = 1234.5 + float64(i)
		} else {
			e.ConsumptionTonnes = 0.1 + float64(i)*3.3
		}
		if d.BDNField != "" {
			e.BunkerDeliveryNote = "BDN-" + d.Field
			if d.SupplierBDN {
				e.FuelSupplier = e.BunkerDeliveryNote
			}
		}
		e.SourceRow = i + 1
		entries = append(entries, e)
	}

	data, err := Render(entries)
	require.NoError(t, err)

	res, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, res.Records, len(entries))
	assert.Empty(t, res.Metadata.UnmappedHeaders)
	assert.Equal(t, SheetName, res.Metadata.SheetName)

	for i, rec := range res.Records {
		got, err := ToEntries(rec, "voyage-7")
		require.NoError(t, err)
		require.Len(t, got, 1, "row %d", i+1)
		assert.Equal(t, entries[i], got[0], "row %d", i+1)
	}
}

func TestRender_LeavesInapplicableCellsBlank(t *testing.T) {
	data, err := Render([]Entry{{
		ConsumptionDate:   day(2024, 2, 1),
		EngineType:        EngineAuxiliary,
		FuelType:          FuelMGO,
		FuelCategory:      CategoryFossil,
		ConsumptionTonnes: 2,
	}})
	require.NoError(t, err)

	res, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	fields := res.Records[0].Fields
	assert.Equal(t, "2", fields["AE_Consumption_MGO"])
	for _, name := range []string{"ME_Consumption_HFO", "ME_Consumption_MGO", "Boiler_Consumption_HFO", FieldShorePowerKWh, FieldIMO, FieldMEFuelBDN} {
		_, ok := fields[name]
		assert.False(t, ok, name)
	}
}

func TestRender_UnknownDimension(t *testing.T) {
	_, err := Render([]Entry{{EngineType: EngineBoiler, FuelType: FuelLNG}})
	assert.Error(t, err)
}

func TestRenderColumns_HeaderIsCanonical(t *testing.T) {
	for _, name := range RenderColumns() {
		_, ok := Lookup(name)
		assert.True(t, ok, name)
	}
}
