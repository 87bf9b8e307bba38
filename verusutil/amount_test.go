// Copyright (c) 2013, 2014 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verusutil

import (
	"math"
	"testing"
)

func TestNewAmount(t *testing.T) {
	tests := []struct {
		name  string
		coins float64
		want  Amount
		err   bool
	}{
		{name: "one coin", coins: 1, want: SatoshiPerCoin},
		{name: "fraction rounds", coins: 0.000000015, want: 2},
		{name: "negative", coins: -1.5, want: -150000000},
		{name: "zero", coins: 0, want: 0},
		{name: "nan", coins: math.NaN(), err: true},
		{name: "+inf", coins: math.Inf(1), err: true},
		{name: "-inf", coins: math.Inf(-1), err: true},
	}

	for _, test := range tests {
		got, err := NewAmount(test.coins)
		if test.err {
			if err == nil {
				t.Errorf("%v: expected error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unexpected error %v", test.name, err)
			continue
		}
		if got != test.want {
			t.Errorf("%v: got %v, want %v", test.name, got,
				test.want)
		}
	}
}

func TestAmountUnitConversions(t *testing.T) {
	amt := Amount(244066845644)

	if got := amt.ToCoin(); got != 2440.66845644 {
		t.Errorf("ToCoin: got %v", got)
	}
	if got := amt.ToUnit(AmountSat); got != 244066845644 {
		t.Errorf("ToUnit satoshi: got %v", got)
	}
	if got := amt.Format(AmountCoin); got != "2440.66845644 VRSC" {
		t.Errorf("Format: got %q", got)
	}
	if got := amt.String(); got != "2440.66845644 VRSC" {
		t.Errorf("String: got %q", got)
	}
	if got := amt.MulF64(0.5); got != Amount(122033422822) {
		t.Errorf("MulF64: got %v", got)
	}
}
