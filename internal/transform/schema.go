// Package transform cleans, types, and filters raw trip batches.
//
// The two fleet categories (yellow and green) share one Transformer; all
// per-category differences live in an immutable Schema descriptor. This keeps
// the defaulting and filter logic in exactly one place, so a fix applied to
// one category cannot silently miss the other.
package transform

import "fmt"

// FieldKind selects the coercion applied to a source value.
type FieldKind int

const (
	// KindTimestamp expects a time.Time from the reader.
	KindTimestamp FieldKind = iota
	// KindUInt8 narrows low-cardinality codes.
	KindUInt8
	// KindUInt16 narrows identifiers (location IDs).
	KindUInt16
	// KindFloat32 narrows monetary/distance amounts.
	KindFloat32
	// KindFlagYN maps the single-character 'Y'/'N' code to bool.
	KindFlagYN
)

// FieldSpec describes one target column.
//
// Default is substituted when the source value is null or the source column
// is absent. A nil Default makes the field required: a missing value is a
// fatal transform error for the batch.
type FieldSpec struct {
	Name    string
	Kind    FieldKind
	Default any
}

// Schema is the per-category configuration driving the Transformer.
type Schema struct {
	Category string
	Table    string
	Glob     string

	// PickupColumn and DropoffColumn name the canonical timestamp fields
	// the derived columns are computed from.
	PickupColumn  string
	DropoffColumn string

	// Aliases maps every known source spelling of a field to its canonical
	// name. Names not present map to themselves.
	Aliases map[string]string

	// Drop lists source columns excluded from the target schema.
	Drop []string

	Fields []FieldSpec
}

// Derived column names, identical across categories.
const (
	ColTripDurationMinutes = "trip_duration_minutes"
	ColPickupHour          = "pickup_hour"
	ColPickupDayOfWeek     = "pickup_day_of_week"
	ColPickupDate          = "pickup_date"
	ColTipPercentage       = "tip_percentage"
	ColAvgSpeedMPH         = "avg_speed_mph"
)

// Quality filter bounds. These are domain tuning constants carried over
// verbatim; do not adjust them.
const (
	maxTripDistanceMiles = 200.0
	minDurationMinutes   = 0.5
	maxDurationMinutes   = 480.0
	maxFareAmount        = 1000.0
	maxTotalAmount       = 1000.0
)

// Yellow is the schema for yellow-cab trip records.
var Yellow = Schema{
	Category:      "yellow",
	Table:         "yellow_taxi_trips",
	Glob:          "yellow_tripdata_*.parquet",
	PickupColumn:  "tpep_pickup_datetime",
	DropoffColumn: "tpep_dropoff_datetime",
	Aliases: map[string]string{
		"airport_fee":          "Airport_fee",
		"Congestion_Surcharge": "congestion_surcharge",
		"Ratecodeid":           "RatecodeID",
	},
	Fields: []FieldSpec{
		{Name: "VendorID", Kind: KindUInt8},
		{Name: "tpep_pickup_datetime", Kind: KindTimestamp},
		{Name: "tpep_dropoff_datetime", Kind: KindTimestamp},
		{Name: "passenger_count", Kind: KindUInt8, Default: uint8(1)},
		{Name: "trip_distance", Kind: KindFloat32, Default: float32(0)},
		{Name: "RatecodeID", Kind: KindUInt8, Default: uint8(1)},
		{Name: "store_and_fwd_flag", Kind: KindFlagYN, Default: false},
		{Name: "PULocationID", Kind: KindUInt16},
		{Name: "DOLocationID", Kind: KindUInt16},
		// Yellow feeds have always carried payment_type; no default, by
		// the same rule the original applied.
		{Name: "payment_type", Kind: KindUInt8},
		{Name: "fare_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "extra", Kind: KindFloat32, Default: float32(0)},
		{Name: "mta_tax", Kind: KindFloat32, Default: float32(0)},
		{Name: "tip_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "tolls_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "improvement_surcharge", Kind: KindFloat32, Default: float32(0)},
		{Name: "total_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "congestion_surcharge", Kind: KindFloat32, Default: float32(0)},
		{Name: "Airport_fee", Kind: KindFloat32, Default: float32(0)},
	},
}

// Green is the schema for green-cab (street hail livery) trip records.
var Green = Schema{
	Category:      "green",
	Table:         "green_taxi_trips",
	Glob:          "green_tripdata_*.parquet",
	PickupColumn:  "lpep_pickup_datetime",
	DropoffColumn: "lpep_dropoff_datetime",
	Aliases: map[string]string{
		"Congestion_Surcharge": "congestion_surcharge",
		"Ratecodeid":           "RatecodeID",
	},
	Drop: []string{"ehail_fee"},
	Fields: []FieldSpec{
		{Name: "VendorID", Kind: KindUInt8},
		{Name: "lpep_pickup_datetime", Kind: KindTimestamp},
		{Name: "lpep_dropoff_datetime", Kind: KindTimestamp},
		{Name: "passenger_count", Kind: KindUInt8, Default: uint8(1)},
		{Name: "trip_distance", Kind: KindFloat32, Default: float32(0)},
		{Name: "RatecodeID", Kind: KindUInt8, Default: uint8(1)},
		{Name: "store_and_fwd_flag", Kind: KindFlagYN, Default: false},
		{Name: "PULocationID", Kind: KindUInt16},
		{Name: "DOLocationID", Kind: KindUInt16},
		{Name: "payment_type", Kind: KindUInt8, Default: uint8(0)},
		{Name: "fare_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "extra", Kind: KindFloat32, Default: float32(0)},
		{Name: "mta_tax", Kind: KindFloat32, Default: float32(0)},
		{Name: "tip_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "tolls_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "improvement_surcharge", Kind: KindFloat32, Default: float32(0)},
		{Name: "total_amount", Kind: KindFloat32, Default: float32(0)},
		{Name: "congestion_surcharge", Kind: KindFloat32, Default: float32(0)},
	},
}

// ByCategory returns the schema for a category name.
func ByCategory(name string) (Schema, error) {
	switch name {
	case "yellow":
		return Yellow, nil
	case "green":
		return Green, nil
	default:
		return Schema{}, fmt.Errorf("unknown category %q", name)
	}
}

// Columns returns the full target column order: typed source fields followed
// by the derived columns.
func (s Schema) Columns() []string {
	out := make([]string, 0, len(s.Fields)+6)
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	out = append(out,
		ColTripDurationMinutes,
		ColPickupHour,
		ColPickupDayOfWeek,
		ColPickupDate,
		ColTipPercentage,
		ColAvgSpeedMPH,
	)
	return out
}
