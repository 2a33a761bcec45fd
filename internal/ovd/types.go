package ovd

import (
	"fmt"
	"time"
)

// Record is one spreadsheet row keyed by canonical field name.
// Fields holds raw cell text; an absent key means "not reported", never zero.
type Record struct {
	Row    int               // 1-based data row number (first row under the header is 1)
	Fields map[string]string // canonical name -> cell text
	Extra  map[string]string // unmapped headers under their derived key
}

// Get returns the cell text for a canonical field.
func (r Record) Get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// IMO returns the vessel IMO number, or "" when not reported.
func (r Record) IMO() string {
	return r.Fields[FieldIMO]
}

// DateRange is an inclusive span of report dates formatted as YYYY-MM-DD.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metadata summarizes a parsed workbook.
type Metadata struct {
	SheetName       string    `json:"sheetName"`
	RecordCount     int       `json:"recordCount"`
	Vessels         []string  `json:"vessels"`
	DateRange       DateRange `json:"dateRange"`
	UnmappedHeaders []string  `json:"unmappedHeaders,omitempty"`
}

// ParseResult is the output of Parse.
type ParseResult struct {
	Records  []Record
	Metadata Metadata
}

// EngineType identifies the consumer of a fuel.
type EngineType string

const (
	EngineMain      EngineType = "MAIN_ENGINE"
	EngineAuxiliary EngineType = "AUXILIARY_ENGINE"
	EngineBoiler    EngineType = "BOILER"
	EngineGrid      EngineType = "GRID"
)

// FuelType is the ledger fuel code.
type FuelType string

const (
	FuelHFO             FuelType = "HFO"
	FuelMGO             FuelType = "MGO"
	FuelLNG             FuelType = "LNG"
	FuelGridElectricity FuelType = "GRID_ELECTRICITY"
)

// FuelCategory groups fuels for reporting.
type FuelCategory string

const (
	CategoryFossil   FuelCategory = "FOSSIL"
	CategoryElectric FuelCategory = "ELECTRIC"
)

// EnergySourceOPS marks onshore power supply entries.
const EnergySourceOPS = "OPS"

// Entry is one normalized fuel consumption ledger row.
type Entry struct {
	VoyageID           string       `json:"voyageId,omitempty"`
	IMO                string       `json:"imo,omitempty"`
	VoyageNumber       string       `json:"voyageNumber,omitempty"`
	DeparturePort      string       `json:"departurePort,omitempty"`
	ArrivalPort        string       `json:"arrivalPort,omitempty"`
	VoyageLeg          string       `json:"voyageLeg,omitempty"`
	VoyageType         string       `json:"voyageType,omitempty"`
	Event              string       `json:"event,omitempty"`
	ConsumptionDate    time.Time    `json:"consumptionDate"`
	EngineType         EngineType   `json:"engineType"`
	FuelType           FuelType     `json:"fuelType"`
	FuelCategory       FuelCategory `json:"fuelCategory"`
	ConsumptionTonnes  float64      `json:"consumptionTonnes,omitempty"`
	EnergySourceType   string       `json:"energySourceType,omitempty"`
	EnergyKWh          float64      `json:"energyConsumptionKwh,omitempty"`
	BunkerDeliveryNote string       `json:"bunkerDeliveryNote,omitempty"`
	FuelSupplier       string       `json:"fuelSupplier,omitempty"`
	SourceRow          int          `json:"-"`
}

// FormatError reports a workbook that cannot be read as OVDLA data.
// Nothing derived from such a file should be persisted.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid spreadsheet: %s: %v", e.Reason, e.Err)
	}
	return "invalid spreadsheet: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// FieldError reports a single record whose value could not be mapped.
type FieldError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("row %d: %s %s", e.Row, e.Reason, e.Field)
	}
	return fmt.Sprintf("row %d: %s in %s: %q", e.Row, e.Reason, e.Field, e.Value)
}

// RecordError is an advisory finding from Validate.
type RecordError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e RecordError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
