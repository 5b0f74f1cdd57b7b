// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package validator holds the registry records committed to by the tree.
package validator

import (
	"encoding/binary"
	"fmt"

	"github.com/metacraft-labs/DendrETH-sub000/common"
)

const (
	PubkeySize                = 48
	WithdrawalCredentialsSize = 32

	// EncodedSize is the length of a validator record as written to the store.
	EncodedSize = PubkeySize + WithdrawalCredentialsSize + 8 + 1 + 4*8
)

// FarFutureEpoch marks an epoch that has not been scheduled yet.
const FarFutureEpoch = common.Epoch(^uint64(0))

// Validator is one registry record.
type Validator struct {
	Pubkey                     [PubkeySize]byte // immutable once registered
	WithdrawalCredentials      [WithdrawalCredentialsSize]byte
	EffectiveBalance           uint64
	Slashed                    bool
	ActivationEligibilityEpoch common.Epoch
	ActivationEpoch            common.Epoch
	ExitEpoch                  common.Epoch
	WithdrawableEpoch          common.Epoch
}

// Indexed pairs a validator with its position in the registry.
type Indexed struct {
	Index     uint64
	Validator Validator
}

// Zero is the record of an unpopulated registry slot.
func Zero() Validator {
	return Validator{}
}

// SameMutableFields reports whether a and b agree on every field that may
// change over the life of a validator. The public key is not compared.
func SameMutableFields(a, b *Validator) bool {
	return a.WithdrawalCredentials == b.WithdrawalCredentials &&
		a.EffectiveBalance == b.EffectiveBalance &&
		a.Slashed == b.Slashed &&
		a.ActivationEligibilityEpoch == b.ActivationEligibilityEpoch &&
		a.ActivationEpoch == b.ActivationEpoch &&
		a.ExitEpoch == b.ExitEpoch &&
		a.WithdrawableEpoch == b.WithdrawableEpoch
}

// ChangedIndices diffs two registry snapshots and returns the positions in
// next whose mutable fields differ from prev. Records beyond the end of prev
// are new and always reported.
func ChangedIndices(prev, next []Validator) []uint64 {
	var res []uint64
	for i := range next {
		if i >= len(prev) || !SameMutableFields(&prev[i], &next[i]) {
			res = append(res, uint64(i))
		}
	}
	return res
}

// Encode serializes the record into its fixed-size store representation.
func (v *Validator) Encode() []byte {
	res := make([]byte, 0, EncodedSize)
	res = append(res, v.Pubkey[:]...)
	res = append(res, v.WithdrawalCredentials[:]...)
	res = binary.BigEndian.AppendUint64(res, v.EffectiveBalance)
	if v.Slashed {
		res = append(res, 1)
	} else {
		res = append(res, 0)
	}
	res = binary.BigEndian.AppendUint64(res, uint64(v.ActivationEligibilityEpoch))
	res = binary.BigEndian.AppendUint64(res, uint64(v.ActivationEpoch))
	res = binary.BigEndian.AppendUint64(res, uint64(v.ExitEpoch))
	res = binary.BigEndian.AppendUint64(res, uint64(v.WithdrawableEpoch))
	return res
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (Validator, error) {
	var v Validator
	if len(data) != EncodedSize {
		return v, fmt.Errorf("invalid validator record length %d, expected %d", len(data), EncodedSize)
	}
	pos := copy(v.Pubkey[:], data)
	pos += copy(v.WithdrawalCredentials[:], data[pos:])
	v.EffectiveBalance = binary.BigEndian.Uint64(data[pos:])
	pos += 8
	switch data[pos] {
	case 0:
	case 1:
		v.Slashed = true
	default:
		return v, fmt.Errorf("invalid slashed flag %d", data[pos])
	}
	pos++
	epochs := []*common.Epoch{&v.ActivationEligibilityEpoch, &v.ActivationEpoch, &v.ExitEpoch, &v.WithdrawableEpoch}
	for _, e := range epochs {
		*e = common.Epoch(binary.BigEndian.Uint64(data[pos:]))
		pos += 8
	}
	return v, nil
}
