// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package validator

import (
	"testing"

	"golang.org/x/exp/slices"
)

func sampleValidator(seed byte) Validator {
	v := Validator{
		EffectiveBalance:           32_000_000_000,
		ActivationEligibilityEpoch: 1,
		ActivationEpoch:            2,
		ExitEpoch:                  FarFutureEpoch,
		WithdrawableEpoch:          FarFutureEpoch,
	}
	v.Pubkey[0] = seed
	v.WithdrawalCredentials[31] = seed
	return v
}

func TestValidator_EncodeDecode(t *testing.T) {
	for _, v := range []Validator{Zero(), sampleValidator(7), {Slashed: true, ExitEpoch: 12}} {
		data := v.Encode()
		if len(data) != EncodedSize {
			t.Fatalf("unexpected encoded size %d", len(data))
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if got != v {
			t.Errorf("decoded validator differs, wanted %+v, got %+v", v, got)
		}
	}
}

func TestValidator_DecodeRejectsInvalidInput(t *testing.T) {
	v := sampleValidator(1)
	if _, err := Decode(v.Encode()[1:]); err == nil {
		t.Errorf("short input should be rejected")
	}
	data := v.Encode()
	data[PubkeySize+WithdrawalCredentialsSize+8] = 2
	if _, err := Decode(data); err == nil {
		t.Errorf("invalid slashed flag should be rejected")
	}
}

func TestValidator_PubkeyIsIgnoredByComparison(t *testing.T) {
	a := sampleValidator(1)
	b := a
	b.Pubkey[5] = 0xFF
	if !SameMutableFields(&a, &b) {
		t.Errorf("pubkey changes must not count as modifications")
	}
}

func TestValidator_MutableFieldsAreCompared(t *testing.T) {
	base := sampleValidator(1)
	mutations := map[string]func(*Validator){
		"withdrawal credentials": func(v *Validator) { v.WithdrawalCredentials[0] = 1 },
		"effective balance":      func(v *Validator) { v.EffectiveBalance-- },
		"slashed":                func(v *Validator) { v.Slashed = true },
		"eligibility epoch":      func(v *Validator) { v.ActivationEligibilityEpoch++ },
		"activation epoch":       func(v *Validator) { v.ActivationEpoch++ },
		"exit epoch":             func(v *Validator) { v.ExitEpoch = 10 },
		"withdrawable epoch":     func(v *Validator) { v.WithdrawableEpoch = 20 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := base
			mutate(&changed)
			if SameMutableFields(&base, &changed) {
				t.Errorf("change of %s was not detected", name)
			}
		})
	}
}

func TestChangedIndices(t *testing.T) {
	prev := []Validator{sampleValidator(0), sampleValidator(1), sampleValidator(2)}
	next := slices.Clone(prev)
	next[1].EffectiveBalance = 1
	next = append(next, sampleValidator(3), sampleValidator(4))

	got := ChangedIndices(prev, next)
	want := []uint64{1, 3, 4}
	if !slices.Equal(got, want) {
		t.Errorf("wanted %v, got %v", want, got)
	}
	if got := ChangedIndices(next, next); len(got) != 0 {
		t.Errorf("identical snapshots should not produce changes, got %v", got)
	}
	if got := ChangedIndices(nil, prev); len(got) != len(prev) {
		t.Errorf("all records of a fresh snapshot are changes, got %v", got)
	}
}
