package parquetio

import (
	"encoding/binary"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
)

// decodeColumn converts raw parquet leaf values into Go values useful to the
// transformer: timestamps and dates become time.Time, everything else passes
// through. Nulls stay nil.
func decodeColumn(el *parquet.SchemaElement, vals []any) []any {
	conv := converterFor(el)
	if conv == nil {
		return vals
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		out[i] = conv(v)
	}
	return out
}

func converterFor(el *parquet.SchemaElement) func(any) any {
	if lt := el.LogicalType; lt != nil {
		switch {
		case lt.IsSetTIMESTAMP():
			unit := lt.TIMESTAMP.Unit
			switch {
			case unit.IsSetMILLIS():
				return tsMillis
			case unit.IsSetNANOS():
				return tsNanos
			default:
				return tsMicros
			}
		case lt.IsSetDATE():
			return dateDays
		}
	}

	if ct := el.ConvertedType; ct != nil {
		switch *ct {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return tsMillis
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return tsMicros
		case parquet.ConvertedType_DATE:
			return dateDays
		}
	}

	// Legacy writers store timestamps as INT96 with no annotation.
	if el.Type != nil && *el.Type == parquet.Type_INT96 {
		return tsInt96
	}

	return nil
}

func tsMillis(v any) any {
	if n, ok := v.(int64); ok {
		return time.UnixMilli(n).UTC()
	}
	return v
}

func tsMicros(v any) any {
	if n, ok := v.(int64); ok {
		return time.UnixMicro(n).UTC()
	}
	return v
}

func tsNanos(v any) any {
	if n, ok := v.(int64); ok {
		return time.Unix(0, n).UTC()
	}
	return v
}

func dateDays(v any) any {
	if n, ok := v.(int32); ok {
		return time.Unix(int64(n)*86400, 0).UTC()
	}
	return v
}

// tsInt96 decodes the legacy 12-byte parquet timestamp: 8 bytes of
// nanoseconds within the day (little endian) followed by a 4-byte Julian day.
func tsInt96(v any) any {
	s, ok := v.(string)
	if !ok || len(s) != 12 {
		return v
	}
	b := []byte(s)
	nanos := int64(binary.LittleEndian.Uint64(b[:8]))
	julian := int64(binary.LittleEndian.Uint32(b[8:12]))

	// Julian day 2440588 is 1970-01-01.
	sec := (julian - 2440588) * 86400
	return time.Unix(sec, nanos).UTC()
}
