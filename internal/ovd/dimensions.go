package ovd

// dimension binds one consumption column to the ledger entry it produces.
type dimension struct {
	Field        string
	Engine       EngineType
	Fuel         FuelType
	Category     FuelCategory
	BDNField     string // "" when the column carries no delivery note
	SupplierBDN  bool   // fuel supplier is recorded as the BDN reference
	EnergySource string // set for electrical supply, amount is kWh
}

// dimensions is the fixed engine/fuel enumeration, in output column order.
// Boilers draw from the auxiliary fuel supply and share its BDN.
var dimensions = []dimension{
	{Field: "ME_Consumption_HFO", Engine: EngineMain, Fuel: FuelHFO, Category: CategoryFossil, BDNField: FieldMEFuelBDN, SupplierBDN: true},
	{Field: "ME_Consumption_MGO", Engine: EngineMain, Fuel: FuelMGO, Category: CategoryFossil, BDNField: FieldMEFuelBDN, SupplierBDN: true},
	{Field: "ME_Consumption_LNG", Engine: EngineMain, Fuel: FuelLNG, Category: CategoryFossil, BDNField: FieldMEFuelBDN},
	{Field: "AE_Consumption_MGO", Engine: EngineAuxiliary, Fuel: FuelMGO, Category: CategoryFossil, BDNField: FieldAEFuelBDN, SupplierBDN: true},
	{Field: "Boiler_Consumption_HFO", Engine: EngineBoiler, Fuel: FuelHFO, Category: CategoryFossil, BDNField: FieldAEFuelBDN},
	{Field: FieldShorePowerKWh, Engine: EngineGrid, Fuel: FuelGridElectricity, Category: CategoryElectric, EnergySource: EnergySourceOPS},
}

// dimensionFor finds the dimension that produced an entry.
func dimensionFor(e Entry) (dimension, bool) {
	for _, d := range dimensions {
		if d.Engine == e.EngineType && d.Fuel == e.FuelType {
			return d, true
		}
	}
	return dimension{}, false
}

// amount returns the quantity an entry reports for this dimension.
func (d dimension) amount(e Entry) float64 {
	if d.EnergySource != "" {
		return e.EnergyKWh
	}
	return e.ConsumptionTonnes
}

// ConsumptionFields returns the canonical columns that map to ledger entries.
func ConsumptionFields() []string {
	out := make([]string, len(dimensions))
	for i, d := range dimensions {
		out[i] = d.Field
	}
	return out
}
