package ovd

import "strings"

// requiredFields must be present on every record.
var requiredFields = []string{FieldDateUTC, FieldIMO}

// ToEntries maps one record onto ledger entries, one per reported
// engine/fuel dimension. A record with no consumption columns yields no
// entries and no error. Any unparseable amount fails the whole record so
// that a row is either fully imported or not at all.
func ToEntries(rec Record, voyageRef string) ([]Entry, error) {
	var (
		entries []Entry
		date    string
	)

	for _, d := range dimensions {
		raw, ok := rec.Fields[d.Field]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		amount, err := parseAmount(raw)
		if err != nil {
			return nil, &FieldError{Row: rec.Row, Field: d.Field, Value: raw, Reason: err.Error()}
		}

		if date == "" {
			date = rec.Fields[FieldDateUTC]
		}
		day, err := parseDate(date)
		if err != nil {
			return nil, &FieldError{Row: rec.Row, Field: FieldDateUTC, Value: date, Reason: err.Error()}
		}

		e := Entry{
			VoyageID:        voyageRef,
			IMO:             rec.Fields[FieldIMO],
			VoyageNumber:    rec.Fields[FieldVoyageNumber],
			DeparturePort:   rec.Fields[FieldVoyageFrom],
			ArrivalPort:     rec.Fields[FieldVoyageTo],
			VoyageLeg:       rec.Fields[FieldVoyageLeg],
			VoyageType:      rec.Fields[FieldVoyageType],
			Event:           rec.Fields[FieldEvent],
			ConsumptionDate: day,
			EngineType:      d.Engine,
			FuelType:        d.Fuel,
			FuelCategory:    d.Category,
			SourceRow:       rec.Row,
		}
		if d.EnergySource != "" {
			e.EnergySourceType = d.EnergySource
			e.EnergyKWh = amount
		} else {
			e.ConsumptionTonnes = amount
		}
		if d.BDNField != "" {
			e.BunkerDeliveryNote = rec.Fields[d.BDNField]
			if d.SupplierBDN {
				e.FuelSupplier = e.BunkerDeliveryNote
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Validate reports records missing a required field. It never mutates the
// records; callers decide whether a finding is fatal.
func Validate(records []Record) []RecordError {
	var errs []RecordError
	for _, rec := range records {
		errs = append(errs, ValidateRecord(rec)...)
	}
	return errs
}

// ValidateRecord checks a single record.
func ValidateRecord(rec Record) []RecordError {
	var errs []RecordError
	for _, name := range requiredFields {
		if strings.TrimSpace(rec.Fields[name]) == "" {
			errs = append(errs, RecordError{
				Row:     rec.Row,
				Field:   name,
				Message: "required field " + name + " is missing",
			})
		}
	}
	return errs
}
