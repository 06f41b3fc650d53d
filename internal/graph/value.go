package graph

import (
	"math"
	"strconv"
)

// Value is a sample value: either a number or no data.
// The zero Value is no data.
type Value struct {
	v  float64
	ok bool
}

// NoData is the value of a field that was not observed this cycle.
var NoData = Value{}

// Number returns a Value holding f. NaN is treated as no data.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return NoData
	}
	return Value{v: f, ok: true}
}

// Int returns a Value holding n.
func Int(n int64) Value {
	return Value{v: float64(n), ok: true}
}

// Float returns the number and whether the value holds one.
func (v Value) Float() (float64, bool) {
	return v.v, v.ok
}

// Valid reports whether the value holds a number.
func (v Value) Valid() bool {
	return v.ok
}

// String formats the value the way the monitoring host expects it:
// the shortest decimal representation, or "U" for no data.
func (v Value) String() string {
	if !v.ok {
		return "U"
	}
	return strconv.FormatFloat(v.v, 'f', -1, 64)
}

// Sum adds the valid values. It returns NoData only if none is valid.
func Sum(values ...Value) Value {
	var (
		total float64
		seen  bool
	)
	for _, v := range values {
		if v.ok {
			total += v.v
			seen = true
		}
	}
	if !seen {
		return NoData
	}
	return Value{v: total, ok: true}
}
