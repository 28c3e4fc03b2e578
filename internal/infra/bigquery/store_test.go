package bigquery

import (
	"math/big"
	"testing"
)

func TestRatToCents(t *testing.T) {
	cases := []struct {
		name   string
		amount *big.Rat
		want   int64
		ok     bool
	}{
		{name: "whole dollars", amount: big.NewRat(450, 1), want: 45000, ok: true},
		{name: "cents", amount: big.NewRat(45010, 100), want: 45010, ok: true},
		{name: "negative", amount: big.NewRat(-1230, 100), want: -1230, ok: true},
		{name: "sub-cent precision", amount: big.NewRat(1, 3), ok: false},
		{name: "nil", amount: nil, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ratToCents(tc.amount)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("got %d cents, want %d", got, tc.want)
			}
		})
	}
}
