package db

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Numeric converts a money amount to a NUMERIC value at the given scale.
func Numeric(v float64, scale int32) pgtype.Numeric {
	var n pgtype.Numeric
	d := decimal.NewFromFloat(v).Round(scale)
	if err := n.Scan(d.StringFixed(scale)); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// NullableNumeric is Numeric for optional amounts.
func NullableNumeric(v *float64, scale int32) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return Numeric(*v, scale)
}

// Float returns the float value of a NUMERIC, zero when NULL.
func Float(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0
	}
	return f.Float64
}

// NullableFloat returns nil for NULL numerics.
func NullableFloat(n pgtype.Numeric) *float64 {
	if !n.Valid {
		return nil
	}
	v := Float(n)
	return &v
}
