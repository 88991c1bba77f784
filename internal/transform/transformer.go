package transform

import (
	"errors"
	"fmt"
	"math"
	"time"

	"taxiload/internal/parquetio"
)

// ErrMissingField is returned when a required field (one with no default
// policy) is absent or null. The whole batch is rejected; the caller treats
// this as fatal for the current file.
var ErrMissingField = errors.New("required field missing")

// CleanBatch is a typed, filtered batch ready for insertion. Rows are
// positionally aligned with Columns and contain only non-null typed values.
type CleanBatch struct {
	Columns []string
	Rows    [][]any
}

// Transformer applies one category's cleaning pipeline to raw batches:
// column reconciliation, missing-value defaulting, type narrowing, derived
// fields, and the quality filter, in that order.
type Transformer struct {
	schema Schema
	cols   []string
	drop   map[string]struct{}

	pickupIdx   int
	dropoffIdx  int
	distanceIdx int
	fareIdx     int
	tipIdx      int
	totalIdx    int
}

// New compiles a Schema into a Transformer. The schema is treated as
// immutable after this point.
func New(s Schema) *Transformer {
	t := &Transformer{
		schema:      s,
		cols:        s.Columns(),
		drop:        make(map[string]struct{}, len(s.Drop)),
		pickupIdx:   -1,
		dropoffIdx:  -1,
		distanceIdx: -1,
		fareIdx:     -1,
		tipIdx:      -1,
		totalIdx:    -1,
	}
	for _, d := range s.Drop {
		t.drop[d] = struct{}{}
	}
	for i, f := range s.Fields {
		switch f.Name {
		case s.PickupColumn:
			t.pickupIdx = i
		case s.DropoffColumn:
			t.dropoffIdx = i
		case "trip_distance":
			t.distanceIdx = i
		case "fare_amount":
			t.fareIdx = i
		case "tip_amount":
			t.tipIdx = i
		case "total_amount":
			t.totalIdx = i
		}
	}
	return t
}

// Transform consumes one raw batch and returns the cleaned batch plus the
// number of rows rejected by the quality filter. rows_in == raw.Rows,
// rows_out == len(clean.Rows), filtered == rows_in - rows_out.
//
// Errors:
//   - Wraps ErrMissingField when a field without a default is absent/null.
//   - Returns a plain error for values of an unconvertible type.
func (t *Transformer) Transform(raw *parquetio.Batch) (*CleanBatch, int, error) {
	cols := t.reconcile(raw.Columns)

	out := &CleanBatch{
		Columns: t.cols,
		Rows:    make([][]any, 0, raw.Rows),
	}

	nFields := len(t.schema.Fields)
	filtered := 0

	for r := 0; r < raw.Rows; r++ {
		row := make([]any, len(t.cols))

		for i := range t.schema.Fields {
			f := &t.schema.Fields[i]
			v, err := coerceField(f, columnValue(cols, f.Name, r))
			if err != nil {
				return nil, 0, fmt.Errorf("row %d: %w", r, err)
			}
			row[i] = v
		}

		pickup := row[t.pickupIdx].(time.Time)
		dropoff := row[t.dropoffIdx].(time.Time)
		distance := float64(row[t.distanceIdx].(float32))
		fare := float64(row[t.fareIdx].(float32))
		tip := float64(row[t.tipIdx].(float32))
		total := float64(row[t.totalIdx].(float32))

		duration := dropoff.Sub(pickup).Seconds() / 60

		row[nFields+0] = float32(duration)
		row[nFields+1] = uint8(pickup.Hour())
		row[nFields+2] = uint8((int(pickup.Weekday()) + 6) % 7) // Monday=0
		row[nFields+3] = midnightUTC(pickup)
		row[nFields+4] = tipPercentage(tip, fare)
		row[nFields+5] = avgSpeedMPH(distance, duration)

		if !keepRow(distance, duration, fare, total) {
			filtered++
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	return out, filtered, nil
}

// reconcile maps every known alias to its canonical column name and drops
// columns excluded from the target schema. Unrecognized columns pass through
// under their own name. Applying it twice is a no-op: canonical names are
// never themselves alias keys.
func (t *Transformer) reconcile(in map[string][]any) map[string][]any {
	out := make(map[string][]any, len(in))
	for name, vals := range in {
		if canon, ok := t.schema.Aliases[name]; ok {
			name = canon
		}
		if _, ok := t.drop[name]; ok {
			continue
		}
		out[name] = vals
	}
	return out
}

// keepRow evaluates the conjunctive quality predicates. Bounds are exclusive
// except the duration upper bound.
func keepRow(distance, duration, fare, total float64) bool {
	return distance > 0 && distance < maxTripDistanceMiles &&
		duration > minDurationMinutes && duration <= maxDurationMinutes &&
		fare > 0 && fare < maxFareAmount &&
		total > 0 && total < maxTotalAmount
}

// tipPercentage is tip/fare*100 when fare is positive, else 0, clamped to
// [0,100]. fare=0 must yield 0, not a division fault.
func tipPercentage(tip, fare float64) float32 {
	if fare <= 0 {
		return 0
	}
	return clamp01e2(tip / fare * 100)
}

// avgSpeedMPH is distance over duration-in-hours when the duration is
// positive, else 0, clamped to [0,100].
func avgSpeedMPH(distance, durationMinutes float64) float32 {
	if durationMinutes <= 0 {
		return 0
	}
	return clamp01e2(distance / (durationMinutes / 60))
}

func clamp01e2(v float64) float32 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return float32(v)
}

func midnightUTC(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func columnValue(cols map[string][]any, name string, row int) any {
	vals, ok := cols[name]
	if !ok || row >= len(vals) {
		return nil
	}
	return vals[row]
}

// coerceField applies defaulting and type narrowing for one field.
func coerceField(f *FieldSpec, v any) (any, error) {
	if isNull(v) {
		if f.Default == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f.Name)
		}
		return f.Default, nil
	}

	switch f.Kind {
	case KindTimestamp:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("field %s: want timestamp, got %T", f.Name, v)
		}
		return ts, nil

	case KindUInt8:
		n, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %s: want numeric, got %T", f.Name, v)
		}
		return uint8(n), nil

	case KindUInt16:
		n, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %s: want numeric, got %T", f.Name, v)
		}
		return uint16(n), nil

	case KindFloat32:
		n, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("field %s: want numeric, got %T", f.Name, v)
		}
		return float32(n), nil

	case KindFlagYN:
		// 'Y' maps to true; 'N' and anything unmapped map to false.
		s, _ := v.(string)
		return s == "Y", nil

	default:
		return nil, fmt.Errorf("field %s: unknown kind %d", f.Name, f.Kind)
	}
}

// isNull treats nil and float NaN as missing; parquet readers surface
// absent optional values as nil, while upstream writers occasionally encode
// them as NaN in double columns.
func isNull(v any) bool {
	switch n := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(n)
	case float32:
		return math.IsNaN(float64(n))
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int16:
		return float64(n), true
	case int8:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint8:
		return float64(n), true
	}
	return 0, false
}
