package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/speedrun-executor/pkg/models"
)

// txFile is the JSON transaction the runner executes
type txFile struct {
	Calls []struct {
		To    common.Address `json:"to"`
		Value *hexutil.Big   `json:"value"`
		Data  hexutil.Bytes  `json:"data"`
	} `json:"calls"`
	TokenRequests []struct {
		Token  common.Address `json:"token"`
		Amount *hexutil.Big   `json:"amount"`
	} `json:"tokenRequests"`
	GasLimit     *hexutil.Big `json:"gasLimit"`
	SourceChains []uint64     `json:"sourceChains"`
	TargetChain  uint64       `json:"targetChain"`
	Sponsored    bool         `json:"sponsored"`
	UserOp       bool         `json:"userOp"`
	// Signer is "owners" (default) or "session"
	Signer string `json:"signer"`
}

func bigOf(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return v.ToInt()
}

// readTransaction loads a transaction from path
func readTransaction(path string) (*models.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction file: %v", err)
	}
	return parseTransaction(data)
}

func parseTransaction(data []byte) (*models.Transaction, error) {
	var f txFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %v", err)
	}
	if f.TargetChain == 0 {
		return nil, fmt.Errorf("transaction has no targetChain")
	}

	tx := &models.Transaction{
		GasLimit:     bigOf(f.GasLimit),
		SourceChains: f.SourceChains,
		TargetChain:  f.TargetChain,
		Sponsored:    f.Sponsored,
		UserOp:       f.UserOp,
	}
	for _, c := range f.Calls {
		tx.Calls = append(tx.Calls, models.Call{To: c.To, Value: bigOf(c.Value), Data: c.Data})
	}
	for _, t := range f.TokenRequests {
		if t.Amount == nil {
			return nil, fmt.Errorf("token request for %s has no amount", t.Token.Hex())
		}
		tx.TokenRequests = append(tx.TokenRequests, models.TokenRequest{Token: t.Token, Amount: bigOf(t.Amount)})
	}

	switch f.Signer {
	case "", "owners":
	case "session":
		// resolved against the configured session
		tx.Signers = &models.SessionSigners{}
	default:
		return nil, fmt.Errorf("unknown signer %q, must be 'owners' or 'session'", f.Signer)
	}
	return tx, nil
}
