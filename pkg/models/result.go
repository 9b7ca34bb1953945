package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionResult is one of *UserOpResult or *IntentResult
type TransactionResult interface {
	isTransactionResult()
	TargetChainID() uint64
}

// UserOpResult identifies a user operation submitted to a bundler
type UserOpResult struct {
	Hash        common.Hash
	SourceChain uint64
	TargetChain uint64
}

// IntentResult identifies a bundle submitted to the settlement backend
type IntentResult struct {
	ID string
	// SourceChain is zero when the backend chose the origin
	SourceChain uint64
	TargetChain uint64
}

func (*UserOpResult) isTransactionResult() {}
func (*IntentResult) isTransactionResult() {}

// TargetChainID returns the chain the user operation runs on
func (r *UserOpResult) TargetChainID() uint64 { return r.TargetChain }

// TargetChainID returns the destination chain of the bundle
func (r *IntentResult) TargetChainID() uint64 { return r.TargetChain }

// Status is the lifecycle state of a bundle or intent
type Status string

const (
	StatusPending            Status = "PENDING"
	StatusPartiallyCompleted Status = "PARTIALLY_COMPLETED"
	StatusPreconfirmed       Status = "PRECONFIRMED"
	StatusFilled             Status = "FILLED"
	StatusCompleted          Status = "COMPLETED"
	StatusExpired            Status = "EXPIRED"
	StatusFailed             Status = "FAILED"
	StatusUnknown            Status = "UNKNOWN"
)

// ParseStatus maps a backend status string to a Status, UNKNOWN if unrecognized
func ParseStatus(s string) Status {
	switch status := Status(strings.ToUpper(s)); status {
	case StatusPending, StatusPartiallyCompleted, StatusPreconfirmed, StatusFilled,
		StatusCompleted, StatusExpired, StatusFailed:
		return status
	}
	return StatusUnknown
}

// IsTerminal returns true for states a bundle never leaves
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCompleted, StatusExpired, StatusFailed:
		return true
	}
	return false
}
