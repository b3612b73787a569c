package model

// Instruction is one curtailment order for a station: a date, a time range and
// an optional declared load floor. Instructions are immutable once extracted.
type Instruction struct {
	Station string
	// Date is the display label of the instruction day, e.g. "02-Jan-2026".
	Date string
	// From and To are clock times in "HH:MM". To may be earlier than From when
	// the instruction crosses midnight.
	From string
	To   string
	// LoadFloor is the declared minimum load in MW, when the instruction sheet
	// carries one. Nil means no declared floor.
	LoadFloor *float64
	// SourceRow is the 1-based row of the instructions sheet this came from.
	SourceRow int
}

// Slot is a single 15-minute reporting interval.
type Slot struct {
	From string
	To   string
}

// OutputRow is one line of the reconciliation ledger. Value fields are nil
// when the corresponding source had no figure for the slot; ComplianceMU is
// the only zero-floored field and is never blank.
type OutputRow struct {
	// Date is set only on the first row of an instruction block.
	Date string
	From string
	To   string

	Reference *float64
	Telemetry *float64
	// RefTelDiff is Reference - Telemetry, rounded to 2 decimals.
	RefTelDiff *float64
	// EnergyMUs is RefTelDiff / 4000, rounded to 10 decimals.
	EnergyMUs *float64
	// Ramp is the physically-derived trajectory value, rounded to 2 decimals.
	Ramp *float64
	// ComplianceDiff is Telemetry - Ramp, rounded to 2 decimals.
	ComplianceDiff *float64
	// ComplianceMU is ComplianceDiff/4000 rounded to 10 decimals when
	// positive, else exactly 0.
	ComplianceMU float64

	// Summary rows terminate an instruction block and carry only the sums.
	Summary         bool
	SumEnergyMUs    *float64
	SumComplianceMU *float64

	// BlockEnd marks the last slot of an instruction's own range.
	BlockEnd bool
}

// Tunables are the ramp parameters of a run. All values are pass-through
// numbers; no validation happens beyond parsing.
type Tunables struct {
	RampUp5    float64 `json:"ramp_up_5"`
	RampUp10   float64 `json:"ramp_up_10"`
	RampUp15   float64 `json:"ramp_up_15"`
	RampDown5  float64 `json:"ramp_down_5"`
	RampDown10 float64 `json:"ramp_down_10"`
	RampDown15 float64 `json:"ramp_down_15"`
	// MinimumLoadFloor bounds every ramp-down from below, regardless of the
	// instruction's declared floor.
	MinimumLoadFloor float64 `json:"minimum_load_floor"`
	// MaxHeaderScanRows caps how many leading rows are scanned for headers.
	MaxHeaderScanRows int `json:"max_header_scan_rows"`
}

// DefaultTunables returns the ramp parameters used when configuration leaves
// them unset.
func DefaultTunables() Tunables {
	return Tunables{
		RampUp5:           15,
		RampUp10:          27.5,
		RampUp15:          40,
		RampDown5:         15,
		RampDown10:        27.5,
		RampDown15:        40,
		MinimumLoadFloor:  270,
		MaxHeaderScanRows: 10,
	}
}

// Float returns a pointer to v. Convenience for optional values.
func Float(v float64) *float64 { return &v }
