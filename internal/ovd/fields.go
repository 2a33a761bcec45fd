// Package ovd converts between DNV OVDLA spreadsheets and fuel consumption
// ledger entries.
//
// The package is pure: it reads and writes the bytes it is given and never
// touches the filesystem or the database. Parse turns a workbook into sparse
// records keyed by canonical field name, ToEntries maps one record onto
// ledger entries, Render writes entries back into a workbook and Validate
// reports missing required fields.
package ovd

import "strings"

// FieldKind describes how a canonical field's cell text is interpreted.
type FieldKind int

const (
	Text FieldKind = iota
	Number
)

// Field is one column of the OVDLA interface.
type Field struct {
	Name string
	Kind FieldKind
}

// Canonical field names used directly by the adapter.
const (
	FieldDateUTC       = "Date_UTC"
	FieldTimeUTC       = "Time_UTC"
	FieldIMO           = "IMO"
	FieldEvent         = "Event"
	FieldVoyageFrom    = "Voyage_From"
	FieldVoyageTo      = "Voyage_To"
	FieldVoyageNumber  = "Voyage_Number"
	FieldVoyageLeg     = "Voyage_Leg"
	FieldVoyageType    = "Voyage_Type"
	FieldMEFuelBDN     = "ME_Fuel_BDN"
	FieldAEFuelBDN     = "AE_Fuel_BDN"
	FieldShorePowerKWh = "Shore_Side_Electricity_Reception"
)

// canonicalFields lists every OVDLA 3.10.1 column in interface order.
var canonicalFields = []Field{
	// Date and Time
	{"Date_UTC", Text},
	{"Time_UTC", Text},
	// Vessel Identification
	{"IMO", Text},
	// Voyage Information
	{"Event", Text},
	{"Voyage_From", Text},
	{"Voyage_To", Text},
	{"Voyage_Number", Text},
	{"Voyage_Leg", Text},
	{"Voyage_Type", Text},
	{"Purposes_Of_Call", Text},
	{"Offhire_Reasons", Text},
	// Activities and Time Tracking
	{"Activity_1", Text},
	{"Time_Elapsed_Activity_1", Number},
	{"Activity_2", Text},
	{"Time_Elapsed_Activity_2", Number},
	{"Time_Since_Previous_Report", Number},
	{"Time_Elapsed_Anchoring", Number},
	{"Time_Elapsed_Sailing", Number},
	{"Time_Elapsed_Drifting", Number},
	{"Time_Elapsed_Maneuvering", Number},
	{"Time_Elapsed_Waiting", Number},
	{"Time_Elapsed_Loading_Unloading", Number},
	{"Time_Elapsed_Ice", Number},
	// Position and Distance
	{"Distance", Number},
	{"Latitude_North_South", Text},
	{"Latitude_Degree", Number},
	{"Latitude_Minutes", Number},
	{"Longitude_East_West", Text},
	{"Longitude_Degree", Number},
	{"Longitude_Minutes", Number},
	// Cargo Information
	{"Cargo_Mt", Number},
	{"Cargo_m3", Number},
	{"Deadweight_Carried", Number},
	{"Cargo_Total_TEU", Number},
	{"Cargo_Reefer_TEU", Number},
	{"Cargo_CEU", Number},
	{"Passengers", Number},
	{"Crew", Number},
	{"Reefer_20_Chilled", Number},
	{"Reefer_40_Chilled", Number},
	{"Reefer_20_Frozen", Number},
	{"Reefer_40_Frozen", Number},
	// Weather
	{"Wind_Dir", Number},
	{"Wind_Force_Kn", Number},
	{"Wind_Force_Bft", Number},
	// Main Engine Consumption
	{"ME_Consumption_HFO", Number},
	{"ME_Consumption_LFO", Number},
	{"ME_Consumption_MGO", Number},
	{"ME_Consumption_MDO", Number},
	{"ME_Consumption_O", Number},
	{"ME_Consumption_O_type", Text},
	{"ME_Consumption_LPGP", Number},
	{"ME_Consumption_LPGB", Number},
	{"ME_Consumption_LNG", Number},
	{"ME_Consumption_M", Number},
	{"ME_Consumption_E", Number},
	// Auxiliary Engine Consumption
	{"AE_Consumption_HFO", Number},
	{"AE_Consumption_LFO", Number},
	{"AE_Consumption_MGO", Number},
	{"AE_Consumption_MDO", Number},
	{"AE_Consumption_O", Number},
	{"AE_Consumption_O_type", Text},
	{"AE_Consumption_LPGP", Number},
	{"AE_Consumption_LPGB", Number},
	{"AE_Consumption_LNG", Number},
	{"AE_Consumption_M", Number},
	{"AE_Consumption_E", Number},
	// Boiler Consumption
	{"Boiler_Consumption_HFO", Number},
	{"Boiler_Consumption_LFO", Number},
	{"Boiler_Consumption_MGO", Number},
	{"Boiler_Consumption_MDO", Number},
	{"Boiler_Consumption_O", Number},
	{"Boiler_Consumption_O_Type", Text},
	{"Boiler_Consumption_LPGP", Number},
	{"Boiler_Consumption_LPGB", Number},
	{"Boiler_Consumption_LNG", Number},
	{"Boiler_Consumption_M", Number},
	{"Boiler_Consumption_E", Number},
	// Inert Gas Generator Consumption
	{"Inert_gas_Consumption_HFO", Number},
	{"Inert_gas_Consumption_LFO", Number},
	{"Inert_gas_Consumption_MGO", Number},
	{"Inert_gas_Consumption_MDO", Number},
	{"Inert_gas_Consumption_O", Number},
	{"Inert_gas_Consumption_O_Type", Text},
	{"Inert_gas_Consumption_LPGP", Number},
	{"Inert_gas_Consumption_LPGB", Number},
	{"Inert_gas_Consumption_LNG", Number},
	{"Inert_gas_Consumption_M", Number},
	{"Inert_gas_Consumption_E", Number},
	// Remain on Board (ROB)
	{"HFO_ROB", Number},
	{"LFO_ROB", Number},
	{"MGO_ROB", Number},
	{"MDO_ROB", Number},
	{"LPGP_ROB", Number},
	{"LPGB_ROB", Number},
	{"LNG_ROB", Number},
	{"Methanol_ROB", Number},
	{"Ethanol_ROB", Number},
	{"O_ROB", Number},
	{"O_ROB_type", Text},
	// Cargo Handling Equipment
	{"Reefer_Work", Number},
	{"Reefer_SFOC", Number},
	{"Reefer_Fuel_Type", Text},
	{"Reefer_Fuel_BDN", Text},
	{"Cargo_Cooling_Work", Number},
	{"Cargo_Cooling_SFOC", Number},
	{"Cargo_Cooling_Fuel_Type", Text},
	{"Cargo_Cooling_Fuel_BDN", Text},
	{"Discharge_Pump_Work", Number},
	{"Discharge_Pump_SFOC", Number},
	{"Discharge_Pump_Fuel_Type", Text},
	{"Discharge_Pump_Fuel_BDN", Text},
	// Onshore Power Supply
	{"Shore_Side_Electricity_Reception", Number},
	// Cargo Heating
	{"Cargo_heating_Consumption_HFO", Number},
	{"Cargo_heating_Consumption_LFO", Number},
	{"Cargo_heating_Consumption_MGO", Number},
	{"Cargo_heating_Consumption_MDO", Number},
	{"Cargo_heating_Consumption_LPGP", Number},
	{"Cargo_heating_Consumption_LPGB", Number},
	{"Cargo_heating_Consumption_LNG", Number},
	{"Cargo_heating_Consumption_M", Number},
	{"Cargo_heating_Consumption_E", Number},
	{"Cargo_heating_Consumption_O", Number},
	{"Cargo_heating_Consumption_O_type", Text},
	{"Cargo_Heating_Consumption_BDN", Text},
	{"Cargo_Heating_Fuel_BDN", Text},
	// DPP Cargo Pump
	{"DPP_Cargo_Pump_Consumption_MDO", Number},
	{"DPP_Cargo_Pump_Consumption_O", Number},
	{"DPP_Cargo_Pump_Consumption_O_type", Text},
	{"DPP_Cargo_Pump_Consumption_BDN", Text},
	{"DPP_Cargo_Pump_Fuel_BDN", Text},
	// Ice Navigation
	{"Distance_ice", Number},
	// Bunker Delivery Notes
	{"ME_Fuel_BDN", Text},
	{"ME_Consumption", Number},
	{"ME_Fuel_BDN_2", Text},
	{"ME_Consumption_BDN_2", Number},
	{"ME_Fuel_BDN_3", Text},
	{"ME_Consumption_BDN_3", Number},
	{"ME_Fuel_BDN_4", Text},
	{"ME_Consumption_BDN_4", Number},
	{"AE_Fuel_BDN", Text},
	{"AE_Consumption", Number},
	{"Boiler_Consumption", Number},
	{"DPP_Consumption", Number},
	{"IGG_Consumption", Number},
	{"GCU_Consumption", Number},
	{"Incinerator_Consumption", Number},
	{"AE_Fuel_BDN_2", Text},
	{"AE_Consumption_BDN_2", Number},
	{"Boiler_Consumption_BDN_2", Number},
	{"AE_Fuel_BDN_3", Text},
	{"AE_Consumption_BDN_3", Number},
	{"Boiler_Consumption_BDN_3", Number},
	{"AE_Fuel_BDN_4", Text},
	{"AE_Consumption_BDN_4", Number},
	{"Boiler_Consumption_BDN_4", Number},
	// ROB by BDN
	{"ROB_Fuel_BDN", Text},
	{"BDN_ROB", Number},
	{"ROB_Fuel_BDN_2", Text},
	{"BDN_2_ROB", Number},
	{"ROB_Fuel_BDN_3", Text},
	{"BDN_3_ROB", Number},
	{"ROB_Fuel_BDN_4", Text},
	{"BDN_4_ROB", Number},
	{"ROB_Fuel_BDN_5", Text},
	{"BDN_5_ROB", Number},
	{"ROB_Fuel_BDN_6", Text},
	{"BDN_6_ROB", Number},
	{"ROB_Fuel_BDN_7", Text},
	{"BDN_7_ROB", Number},
	{"ROB_Fuel_BDN_8", Text},
	{"BDN_8_ROB", Number},
	{"ROB_Fuel_Total", Number},
}

// fieldIndex maps a normalized header to its canonical field. Built once.
var fieldIndex = buildFieldIndex(canonicalFields)

func buildFieldIndex(fields []Field) map[string]Field {
	idx := make(map[string]Field, len(fields))
	for _, f := range fields {
		idx[normalizeHeader(f.Name)] = f
	}
	return idx
}

// Fields returns a copy of the canonical dictionary in interface order.
func Fields() []Field {
	out := make([]Field, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// Lookup resolves a spreadsheet header to its canonical field.
// Matching ignores case, whitespace and underscores.
func Lookup(header string) (Field, bool) {
	f, ok := fieldIndex[normalizeHeader(header)]
	return f, ok
}

// normalizeHeader lowercases and drops whitespace and underscores.
func normalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(h) {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '\u00a0', '\ufeff':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// derivedKey turns an unknown header into a stable key: trimmed, with runs
// of spaces, dots and dashes collapsed to a single underscore.
func derivedKey(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	var b strings.Builder
	lastSep := false
	for _, r := range h {
		switch r {
		case ' ', '.', '-', '\t':
			if !lastSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			lastSep = true
			continue
		}
		lastSep = false
		b.WriteRune(r)
	}
	return strings.TrimSuffix(b.String(), "_")
}
