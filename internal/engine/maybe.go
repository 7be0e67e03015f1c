package engine

import "strconv"

// NullFloat is a float64 that distinguishes "missing" from zero.
// Order-book medians are missing whenever a side had no observations;
// treating that as 0 would silently deflate computed costs, so every
// arithmetic step in the pipeline carries validity along with the value.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Some wraps a measured value.
func Some(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

// None is the missing value.
func None() NullFloat {
	return NullFloat{}
}

// Or returns n if present, otherwise the fallback.
func (n NullFloat) Or(fallback NullFloat) NullFloat {
	if n.Valid {
		return n
	}
	return fallback
}

// OrZero collapses missing to 0. Only for metrics where absent means zero
// (depths, volume caps), never for prices or costs.
func (n NullFloat) OrZero() float64 {
	if n.Valid {
		return n.Float64
	}
	return 0
}

// Sub returns n - other, missing if either operand is missing.
func (n NullFloat) Sub(other NullFloat) NullFloat {
	if !n.Valid || !other.Valid {
		return None()
	}
	return Some(n.Float64 - other.Float64)
}

// String renders the value, or "" for missing. Used by the CSV writers so
// missing cells stay empty instead of becoming a plausible-looking zero.
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Float64, 'f', -1, 64)
}

// ParseNullFloat reads a CSV cell: empty or unparseable means missing.
func ParseNullFloat(s string) NullFloat {
	if s == "" {
		return None()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return None()
	}
	return Some(v)
}
