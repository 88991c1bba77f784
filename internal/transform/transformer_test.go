package transform

import (
	"errors"
	"math"
	"testing"
	"time"

	"taxiload/internal/parquetio"
)

// mondayPickup is 2024-01-15T10:00:00Z, a Monday, so the derived day-of-week
// must be 0.
var mondayPickup = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// yellowBatch builds a well-formed raw batch of n rows for the yellow schema
// and applies per-column overrides. All rows are identical unless overridden.
func yellowBatch(n int, overrides map[string][]any) *parquetio.Batch {
	repeat := func(v any) []any {
		vals := make([]any, n)
		for i := range vals {
			vals[i] = v
		}
		return vals
	}

	cols := map[string][]any{
		"VendorID":              repeat(int64(2)),
		"tpep_pickup_datetime":  repeat(mondayPickup),
		"tpep_dropoff_datetime": repeat(mondayPickup.Add(30 * time.Minute)),
		"passenger_count":       repeat(float64(1)),
		"trip_distance":         repeat(float64(5)),
		"RatecodeID":            repeat(float64(1)),
		"store_and_fwd_flag":    repeat("N"),
		"PULocationID":          repeat(int64(100)),
		"DOLocationID":          repeat(int64(200)),
		"payment_type":          repeat(int64(1)),
		"fare_amount":           repeat(float64(20)),
		"extra":                 repeat(float64(0.5)),
		"mta_tax":               repeat(float64(0.5)),
		"tip_amount":            repeat(float64(5)),
		"tolls_amount":          repeat(float64(0)),
		"improvement_surcharge": repeat(float64(0.3)),
		"total_amount":          repeat(float64(26.3)),
		"congestion_surcharge":  repeat(float64(2.5)),
		"Airport_fee":           repeat(float64(0)),
	}
	for name, vals := range overrides {
		if vals == nil {
			delete(cols, name)
			continue
		}
		cols[name] = vals
	}
	return &parquetio.Batch{Columns: cols, Rows: n}
}

// colIndex locates a column in the output order; the tests address result
// rows by name rather than hard-coded positions.
func colIndex(t *testing.T, cols []string, name string) int {
	t.Helper()
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %q not in output %v", name, cols)
	return -1
}

// TestTransform_DerivedAndFilter exercises the main path: typed coercion,
// derived columns, and the quality filter, over a mixed batch.
func TestTransform_DerivedAndFilter(t *testing.T) {
	raw := yellowBatch(3, map[string][]any{
		// row 1: zero distance -> filtered.
		"trip_distance": {float64(5), float64(0), float64(5)},
		// row 2: nine-hour trip -> duration over bound -> filtered.
		"tpep_dropoff_datetime": {
			mondayPickup.Add(30 * time.Minute),
			mondayPickup.Add(30 * time.Minute),
			mondayPickup.Add(9 * time.Hour),
		},
	})

	tr := New(Yellow)
	clean, filtered, err := tr.Transform(raw)
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}
	if filtered != 2 {
		t.Fatalf("filtered=%d, want 2", filtered)
	}
	if len(clean.Rows) != 1 {
		t.Fatalf("rows=%d, want 1", len(clean.Rows))
	}

	row := clean.Rows[0]
	cols := clean.Columns

	if got := row[colIndex(t, cols, "VendorID")]; got != uint8(2) {
		t.Fatalf("VendorID=%v (%T), want uint8(2)", got, got)
	}
	if got := row[colIndex(t, cols, "trip_distance")]; got != float32(5) {
		t.Fatalf("trip_distance=%v (%T), want float32(5)", got, got)
	}
	if got := row[colIndex(t, cols, "PULocationID")]; got != uint16(100) {
		t.Fatalf("PULocationID=%v (%T), want uint16(100)", got, got)
	}
	if got := row[colIndex(t, cols, "store_and_fwd_flag")]; got != false {
		t.Fatalf("store_and_fwd_flag=%v, want false", got)
	}

	if got := row[colIndex(t, cols, ColTripDurationMinutes)]; got != float32(30) {
		t.Fatalf("duration=%v (%T), want float32(30)", got, got)
	}
	if got := row[colIndex(t, cols, ColPickupHour)]; got != uint8(10) {
		t.Fatalf("pickup_hour=%v, want 10", got)
	}
	if got := row[colIndex(t, cols, ColPickupDayOfWeek)]; got != uint8(0) {
		t.Fatalf("pickup_day_of_week=%v, want 0 (Monday)", got)
	}
	wantDate := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := row[colIndex(t, cols, ColPickupDate)]; !got.(time.Time).Equal(wantDate) {
		t.Fatalf("pickup_date=%v, want %v", got, wantDate)
	}
	if got := row[colIndex(t, cols, ColTipPercentage)]; got != float32(25) {
		t.Fatalf("tip_percentage=%v, want 25", got)
	}
	if got := row[colIndex(t, cols, ColAvgSpeedMPH)]; got != float32(10) {
		t.Fatalf("avg_speed_mph=%v, want 10", got)
	}
}

// TestTransform_Defaults verifies null and absent values take the per-field
// defaults.
func TestTransform_Defaults(t *testing.T) {
	raw := yellowBatch(1, map[string][]any{
		"passenger_count":      {nil},
		"RatecodeID":           {math.NaN()},
		"store_and_fwd_flag":   {nil},
		"congestion_surcharge": {nil},
		"Airport_fee":          nil, // column absent entirely
	})

	clean, filtered, err := New(Yellow).Transform(raw)
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}
	if filtered != 0 || len(clean.Rows) != 1 {
		t.Fatalf("filtered=%d rows=%d, want 0/1", filtered, len(clean.Rows))
	}

	row := clean.Rows[0]
	cols := clean.Columns

	if got := row[colIndex(t, cols, "passenger_count")]; got != uint8(1) {
		t.Fatalf("passenger_count=%v, want default 1", got)
	}
	if got := row[colIndex(t, cols, "RatecodeID")]; got != uint8(1) {
		t.Fatalf("RatecodeID=%v, want default 1 for NaN", got)
	}
	if got := row[colIndex(t, cols, "store_and_fwd_flag")]; got != false {
		t.Fatalf("store_and_fwd_flag=%v, want default false", got)
	}
	if got := row[colIndex(t, cols, "congestion_surcharge")]; got != float32(0) {
		t.Fatalf("congestion_surcharge=%v, want default 0", got)
	}
	if got := row[colIndex(t, cols, "Airport_fee")]; got != float32(0) {
		t.Fatalf("Airport_fee=%v, want default 0 for absent column", got)
	}
}

// TestTransform_Aliases verifies alternate source spellings land in their
// canonical columns.
func TestTransform_Aliases(t *testing.T) {
	raw := yellowBatch(1, map[string][]any{
		"Airport_fee":          nil,
		"airport_fee":          {float64(1.75)},
		"RatecodeID":           nil,
		"Ratecodeid":           {float64(4)},
		"congestion_surcharge": nil,
		"Congestion_Surcharge": {float64(2.5)},
	})

	clean, _, err := New(Yellow).Transform(raw)
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}

	row := clean.Rows[0]
	cols := clean.Columns

	if got := row[colIndex(t, cols, "Airport_fee")]; got != float32(1.75) {
		t.Fatalf("Airport_fee=%v, want 1.75 via alias", got)
	}
	if got := row[colIndex(t, cols, "RatecodeID")]; got != uint8(4) {
		t.Fatalf("RatecodeID=%v, want 4 via alias", got)
	}
	if got := row[colIndex(t, cols, "congestion_surcharge")]; got != float32(2.5) {
		t.Fatalf("congestion_surcharge=%v, want 2.5 via alias", got)
	}
}

// TestReconcile_Idempotent verifies applying reconcile twice changes nothing;
// canonical names must never themselves be alias keys.
func TestReconcile_Idempotent(t *testing.T) {
	tr := New(Yellow)
	in := yellowBatch(1, map[string][]any{
		"Airport_fee": nil,
		"airport_fee": {float64(1.75)},
	}).Columns

	once := tr.reconcile(in)
	twice := tr.reconcile(once)

	if len(once) != len(twice) {
		t.Fatalf("reconcile not idempotent: %d vs %d columns", len(once), len(twice))
	}
	for name := range once {
		if _, ok := twice[name]; !ok {
			t.Fatalf("column %q lost on second reconcile", name)
		}
	}
}

// TestTransform_MissingRequired verifies a null in a field without a default
// fails the batch with ErrMissingField.
func TestTransform_MissingRequired(t *testing.T) {
	raw := yellowBatch(1, map[string][]any{
		"payment_type": {nil},
	})

	_, _, err := New(Yellow).Transform(raw)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("Transform() err=%v, want ErrMissingField", err)
	}
}

// TestTransform_GreenPaymentTypeDefault verifies the categories diverge on
// payment_type: green defaults a null, yellow rejects it.
func TestTransform_GreenPaymentTypeDefault(t *testing.T) {
	repeat := func(v any) []any { return []any{v} }
	raw := &parquetio.Batch{
		Rows: 1,
		Columns: map[string][]any{
			"VendorID":              repeat(int64(2)),
			"lpep_pickup_datetime":  repeat(mondayPickup),
			"lpep_dropoff_datetime": repeat(mondayPickup.Add(15 * time.Minute)),
			"passenger_count":       repeat(float64(1)),
			"trip_distance":         repeat(float64(2)),
			"RatecodeID":            repeat(float64(1)),
			"store_and_fwd_flag":    repeat("Y"),
			"PULocationID":          repeat(int64(7)),
			"DOLocationID":          repeat(int64(8)),
			"payment_type":          repeat(nil),
			"fare_amount":           repeat(float64(10)),
			"extra":                 repeat(float64(0)),
			"mta_tax":               repeat(float64(0.5)),
			"tip_amount":            repeat(float64(2)),
			"tolls_amount":          repeat(float64(0)),
			"improvement_surcharge": repeat(float64(0.3)),
			"total_amount":          repeat(float64(12.8)),
			"congestion_surcharge":  repeat(float64(0)),
			"ehail_fee":             repeat(nil), // dropped column, nulls must not matter
		},
	}

	clean, filtered, err := New(Green).Transform(raw)
	if err != nil {
		t.Fatalf("Transform() err=%v", err)
	}
	if filtered != 0 || len(clean.Rows) != 1 {
		t.Fatalf("filtered=%d rows=%d, want 0/1", filtered, len(clean.Rows))
	}

	row := clean.Rows[0]
	cols := clean.Columns
	if got := row[colIndex(t, cols, "payment_type")]; got != uint8(0) {
		t.Fatalf("payment_type=%v, want green default 0", got)
	}
	if got := row[colIndex(t, cols, "store_and_fwd_flag")]; got != true {
		t.Fatalf("store_and_fwd_flag=%v, want true for Y", got)
	}
}

// TestKeepRow exercises the filter bounds, including the asymmetric duration
// upper bound.
func TestKeepRow(t *testing.T) {
	tests := []struct {
		name                          string
		distance, duration, fare, tot float64
		want                          bool
	}{
		{name: "typical", distance: 5, duration: 30, fare: 20, tot: 25, want: true},
		{name: "zero_distance", distance: 0, duration: 30, fare: 20, tot: 25, want: false},
		{name: "distance_at_max", distance: 200, duration: 30, fare: 20, tot: 25, want: false},
		{name: "duration_at_min", distance: 5, duration: 0.5, fare: 20, tot: 25, want: false},
		{name: "duration_at_max_inclusive", distance: 5, duration: 480, fare: 20, tot: 25, want: true},
		{name: "duration_over_max", distance: 5, duration: 480.01, fare: 20, tot: 25, want: false},
		{name: "negative_duration", distance: 5, duration: -10, fare: 20, tot: 25, want: false},
		{name: "zero_fare", distance: 5, duration: 30, fare: 0, tot: 25, want: false},
		{name: "fare_at_max", distance: 5, duration: 30, fare: 1000, tot: 25, want: false},
		{name: "total_at_max", distance: 5, duration: 30, fare: 20, tot: 1000, want: false},
		{name: "negative_total", distance: 5, duration: 30, fare: 20, tot: -1, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := keepRow(tc.distance, tc.duration, tc.fare, tc.tot); got != tc.want {
				t.Fatalf("keepRow(%v,%v,%v,%v)=%v, want %v",
					tc.distance, tc.duration, tc.fare, tc.tot, got, tc.want)
			}
		})
	}
}

// TestTipPercentage verifies the zero-fare guard and clamping.
func TestTipPercentage(t *testing.T) {
	tests := []struct {
		name      string
		tip, fare float64
		want      float32
	}{
		{name: "quarter", tip: 5, fare: 20, want: 25},
		{name: "zero_fare", tip: 5, fare: 0, want: 0},
		{name: "negative_fare", tip: 5, fare: -10, want: 0},
		{name: "over_100_clamped", tip: 50, fare: 10, want: 100},
		{name: "negative_tip_clamped", tip: -5, fare: 20, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tipPercentage(tc.tip, tc.fare); got != tc.want {
				t.Fatalf("tipPercentage(%v,%v)=%v, want %v", tc.tip, tc.fare, got, tc.want)
			}
		})
	}
}

// TestAvgSpeedMPH verifies the zero-duration guard and clamping.
func TestAvgSpeedMPH(t *testing.T) {
	tests := []struct {
		name               string
		distance, duration float64
		want               float32
	}{
		{name: "ten_mph", distance: 5, duration: 30, want: 10},
		{name: "zero_duration", distance: 5, duration: 0, want: 0},
		{name: "negative_duration", distance: 5, duration: -30, want: 0},
		{name: "over_100_clamped", distance: 300, duration: 60, want: 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := avgSpeedMPH(tc.distance, tc.duration); got != tc.want {
				t.Fatalf("avgSpeedMPH(%v,%v)=%v, want %v", tc.distance, tc.duration, got, tc.want)
			}
		})
	}
}

// TestByCategory verifies category lookup and the derived column ordering.
func TestByCategory(t *testing.T) {
	y, err := ByCategory("yellow")
	if err != nil || y.Table != "yellow_taxi_trips" {
		t.Fatalf("ByCategory(yellow)=%v,%v", y.Table, err)
	}
	g, err := ByCategory("green")
	if err != nil || g.Table != "green_taxi_trips" {
		t.Fatalf("ByCategory(green)=%v,%v", g.Table, err)
	}
	if _, err := ByCategory("purple"); err == nil {
		t.Fatalf("ByCategory(purple) err=nil, want error")
	}

	cols := y.Columns()
	wantTail := []string{
		ColTripDurationMinutes, ColPickupHour, ColPickupDayOfWeek,
		ColPickupDate, ColTipPercentage, ColAvgSpeedMPH,
	}
	if len(cols) != len(y.Fields)+len(wantTail) {
		t.Fatalf("Columns() len=%d, want %d", len(cols), len(y.Fields)+len(wantTail))
	}
	for i, w := range wantTail {
		if got := cols[len(y.Fields)+i]; got != w {
			t.Fatalf("Columns()[%d]=%q, want %q", len(y.Fields)+i, got, w)
		}
	}
}
