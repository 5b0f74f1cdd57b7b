// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package hashing provides the hash functions of the commitment tree. The
// core only relies on the Hasher interface; the SHA-256 variant follows the
// SSZ hash_tree_root of a validator, the Keccak-256 variant hashes the same
// chunks with Keccak.
package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"sync"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"golang.org/x/crypto/sha3"
)

// Hasher computes the hashes of tree nodes.
type Hasher interface {
	// NodeHash combines the hashes of two children into the parent hash.
	NodeHash(left, right common.Hash) common.Hash

	// LeafHash computes the hash committed to for a validator record.
	LeafHash(v *validator.Validator) common.Hash
}

// Name identifies a hasher in configurations.
type Name string

const (
	Sha256Name    Name = "sha256"
	Keccak256Name Name = "keccak256"
)

// ByName returns the hasher registered under the given name.
func ByName(name Name) (Hasher, error) {
	switch name {
	case Sha256Name:
		return Sha256(), nil
	case Keccak256Name:
		return Keccak256(), nil
	}
	return nil, fmt.Errorf("unknown hash function %q", name)
}

// chunkHasher merkleizes 32-byte chunks with a pooled digest.
type chunkHasher struct {
	pool sync.Pool
}

// Sha256 returns the SSZ compatible hasher.
func Sha256() Hasher {
	return &chunkHasher{pool: sync.Pool{New: func() any { return sha256.New() }}}
}

// Keccak256 returns a hasher using the legacy Keccak-256 digest.
func Keccak256() Hasher {
	return &chunkHasher{pool: sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}}
}

func (c *chunkHasher) NodeHash(left, right common.Hash) common.Hash {
	hasher := c.pool.Get().(hash.Hash)
	defer c.pool.Put(hasher)
	hasher.Reset()
	hasher.Write(left[:])
	hasher.Write(right[:])
	var res common.Hash
	hasher.Sum(res[:0])
	return res
}

func (c *chunkHasher) LeafHash(v *validator.Validator) common.Hash {
	var pubkeyLow, pubkeyHigh common.Hash
	copy(pubkeyLow[:], v.Pubkey[:32])
	copy(pubkeyHigh[:], v.Pubkey[32:])

	chunks := [8]common.Hash{
		c.NodeHash(pubkeyLow, pubkeyHigh),
		v.WithdrawalCredentials,
		uint64Chunk(v.EffectiveBalance),
		boolChunk(v.Slashed),
		uint64Chunk(uint64(v.ActivationEligibilityEpoch)),
		uint64Chunk(uint64(v.ActivationEpoch)),
		uint64Chunk(uint64(v.ExitEpoch)),
		uint64Chunk(uint64(v.WithdrawableEpoch)),
	}
	level := chunks[:]
	for len(level) > 1 {
		for i := 0; i < len(level)/2; i++ {
			level[i] = c.NodeHash(level[2*i], level[2*i+1])
		}
		level = level[:len(level)/2]
	}
	return level[0]
}

func uint64Chunk(value uint64) common.Hash {
	var res common.Hash
	binary.LittleEndian.PutUint64(res[:], value)
	return res
}

func boolChunk(value bool) common.Hash {
	var res common.Hash
	if value {
		res[0] = 1
	}
	return res
}

// ZeroHashes returns the hash of an all-default subtree for every level of a
// tree of the given depth. Index d holds the root of such a subtree at
// level d; the leaf level holds the hash of the zero validator.
func ZeroHashes(h Hasher, depth uint8) []common.Hash {
	res := make([]common.Hash, int(depth)+1)
	zero := validator.Zero()
	res[depth] = h.LeafHash(&zero)
	for d := int(depth) - 1; d >= 0; d-- {
		res[d] = h.NodeHash(res[d+1], res[d+1])
	}
	return res
}

// Pending is stored in place of a zero hash that was not computed yet.
var Pending = common.Hash{}

// IsPending reports whether a stored hash value is missing or still pending.
func IsPending(value []byte) bool {
	return len(value) != common.HashSize || common.Hash(value) == Pending
}
