// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package beaconapi

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
)

type headerResponse struct {
	Data struct {
		Header struct {
			Message struct {
				Slot common.Slot `json:"slot,string"`
			} `json:"message"`
		} `json:"header"`
	} `json:"data"`
}

type finalityResponse struct {
	Data struct {
		Finalized struct {
			Epoch common.Epoch `json:"epoch,string"`
		} `json:"finalized"`
	} `json:"data"`
}

type validatorsResponse struct {
	Data []validatorEntry `json:"data"`
}

type validatorEntry struct {
	Index     uint64        `json:"index,string"`
	Validator validatorJson `json:"validator"`
}

type validatorJson struct {
	Pubkey                     hexutil.Bytes `json:"pubkey"`
	WithdrawalCredentials      hexutil.Bytes `json:"withdrawal_credentials"`
	EffectiveBalance           uint64        `json:"effective_balance,string"`
	Slashed                    bool          `json:"slashed"`
	ActivationEligibilityEpoch common.Epoch  `json:"activation_eligibility_epoch,string"`
	ActivationEpoch            common.Epoch  `json:"activation_epoch,string"`
	ExitEpoch                  common.Epoch  `json:"exit_epoch,string"`
	WithdrawableEpoch          common.Epoch  `json:"withdrawable_epoch,string"`
}

func (v *validatorJson) toValidator() (validator.Validator, error) {
	res := validator.Validator{
		EffectiveBalance:           v.EffectiveBalance,
		Slashed:                    v.Slashed,
		ActivationEligibilityEpoch: v.ActivationEligibilityEpoch,
		ActivationEpoch:            v.ActivationEpoch,
		ExitEpoch:                  v.ExitEpoch,
		WithdrawableEpoch:          v.WithdrawableEpoch,
	}
	if len(v.Pubkey) != validator.PubkeySize {
		return res, fmt.Errorf("invalid pubkey length %d", len(v.Pubkey))
	}
	if len(v.WithdrawalCredentials) != validator.WithdrawalCredentialsSize {
		return res, fmt.Errorf("invalid withdrawal credentials length %d", len(v.WithdrawalCredentials))
	}
	copy(res.Pubkey[:], v.Pubkey)
	copy(res.WithdrawalCredentials[:], v.WithdrawalCredentials)
	return res, nil
}

// headEvent is the payload of a head event.
type headEvent struct {
	Slot common.Slot `json:"slot,string"`
}

// finalizedCheckpointEvent is the payload of a finalized_checkpoint event.
type finalizedCheckpointEvent struct {
	Epoch common.Epoch `json:"epoch,string"`
}
