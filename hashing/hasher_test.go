// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
)

func mustHash(t *testing.T, s string) common.Hash {
	t.Helper()
	data, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	h, err := common.HashFromBytes(data)
	if err != nil {
		t.Fatalf("invalid hash: %v", err)
	}
	return h
}

func TestHasher_NodeHashOfZeroChunks(t *testing.T) {
	tests := []struct {
		name Name
		want string
	}{
		{Sha256Name, "f5a5fd42d16a20302798ef6ed309979b43003d2320d9f0e8ea9831a92759fb4b"},
		{Keccak256Name, "ad3228b676f7d3cd4284a5443f17f1962b36e491b30a40b2405849e597ba5fb5"},
	}
	for _, test := range tests {
		t.Run(string(test.name), func(t *testing.T) {
			h, err := ByName(test.name)
			if err != nil {
				t.Fatalf("failed to get hasher: %v", err)
			}
			if got, want := h.NodeHash(common.Hash{}, common.Hash{}), mustHash(t, test.want); got != want {
				t.Errorf("wanted %v, got %v", want, got)
			}
		})
	}
}

func TestHasher_UnknownName(t *testing.T) {
	if _, err := ByName("md5"); err == nil {
		t.Errorf("unknown hash function should be rejected")
	}
}

func TestHasher_LeafHashMatchesSszMerkleization(t *testing.T) {
	v := validator.Validator{
		EffectiveBalance:           32_000_000_000,
		Slashed:                    true,
		ActivationEligibilityEpoch: 3,
		ActivationEpoch:            4,
		ExitEpoch:                  validator.FarFutureEpoch,
		WithdrawableEpoch:          validator.FarFutureEpoch,
	}
	for i := range v.Pubkey {
		v.Pubkey[i] = byte(i)
	}
	v.WithdrawalCredentials[0] = 0x01

	sum := func(a, b []byte) []byte {
		h := sha256.Sum256(append(append([]byte{}, a...), b...))
		return h[:]
	}
	chunk := func(values ...byte) []byte {
		res := make([]byte, 32)
		copy(res, values)
		return res
	}
	pubkeyHigh := make([]byte, 32)
	copy(pubkeyHigh, v.Pubkey[32:])
	balance := chunk(0x00, 0x40, 0x59, 0x73, 0x07) // 32e9 little endian
	farFuture := chunk(0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	want := sum(
		sum(
			sum(sum(v.Pubkey[:32], pubkeyHigh), v.WithdrawalCredentials[:]),
			sum(balance, chunk(1)),
		),
		sum(
			sum(chunk(3), chunk(4)),
			sum(farFuture, farFuture),
		),
	)

	got := Sha256().LeafHash(&v)
	if hex.EncodeToString(got[:]) != hex.EncodeToString(want) {
		t.Errorf("unexpected leaf hash, wanted %x, got %v", want, got)
	}
}

func TestZeroHashes_AreConsistent(t *testing.T) {
	h := Sha256()
	zeroes := ZeroHashes(h, 4)
	if len(zeroes) != 5 {
		t.Fatalf("unexpected number of zero hashes: %d", len(zeroes))
	}
	zero := validator.Zero()
	if zeroes[4] != h.LeafHash(&zero) {
		t.Errorf("leaf level must hold the hash of the zero validator")
	}
	for d := 0; d < 4; d++ {
		if zeroes[d] != h.NodeHash(zeroes[d+1], zeroes[d+1]) {
			t.Errorf("zero hash of level %d is inconsistent", d)
		}
	}
}

func TestTree_EmptyRegistryHasZeroRoot(t *testing.T) {
	h := Sha256()
	tree := BuildTree(h, 5, nil)
	if tree.Root() != ZeroHashes(h, 5)[0] {
		t.Errorf("empty tree should have the zero root")
	}
}

func TestTree_MatchesDenseComputation(t *testing.T) {
	h := Keccak256()
	const depth = 3
	records := make([]validator.Validator, 5)
	for i := range records {
		records[i].EffectiveBalance = uint64(i + 1)
	}
	tree := BuildTree(h, depth, records)
	if tree.Depth() != depth {
		t.Errorf("unexpected depth %d", tree.Depth())
	}

	// dense bottom-up computation over all 8 leaves
	level := make([]common.Hash, 1<<depth)
	for i := range level {
		v := validator.Zero()
		if i < len(records) {
			v = records[i]
		}
		level[i] = h.LeafHash(&v)
		if got := tree.Node(gindex.FromIndex(uint64(i), depth)); got != level[i] {
			t.Errorf("leaf %d differs", i)
		}
	}
	for len(level) > 1 {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = h.NodeHash(level[2*i], level[2*i+1])
		}
		level = next
	}
	if tree.Root() != level[0] {
		t.Errorf("sparse root %v differs from dense root %v", tree.Root(), level[0])
	}
}

func TestTree_WindowMatchesZeroPaddedRegistry(t *testing.T) {
	h := Sha256()
	records := []validator.Validator{{EffectiveBalance: 7}, {EffectiveBalance: 9}}
	padded := append(make([]validator.Validator, 3), records...)
	want := BuildTree(h, 4, padded)
	got := BuildWindowTree(h, 4, 3, records)
	if got.Root() != want.Root() {
		t.Errorf("windowed root %v differs from %v", got.Root(), want.Root())
	}
	if got.Node(gindex.FromIndex(4, 4)) != want.Node(gindex.FromIndex(4, 4)) {
		t.Errorf("windowed leaf differs")
	}
}
