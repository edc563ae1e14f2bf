package wallet

import (
	"context"
	"fmt"
	"time"
)

// Client is the seam to the on-chain wallet service. The live tracking
// core never calls it; the betting UI layer does, and staked sessions
// reference the identifiers it returns.
type Client interface {
	CreateCommitment(ctx context.Context, req CommitmentRequest) (Commitment, error)
	PlaceBet(ctx context.Context, commitmentID string, amount string) error
	FulfillCommitment(ctx context.Context, commitmentID string) error
	GetUserReputation(ctx context.Context, address string) (int64, error)
}

type CommitmentRequest struct {
	Address     string    `json:"address"`
	StakeAmount string    `json:"stakeAmount"`
	Deadline    time.Time `json:"deadline"`
}

type Commitment struct {
	CommitmentID string `json:"commitmentId"`
	StakeAmount  string `json:"stakeAmount"`
}

// StakedSession ties a sharing session to its on-chain commitment.
type StakedSession struct {
	SharingID    string `json:"sharingId"`
	CommitmentID string `json:"commitmentId"`
	StakeAmount  string `json:"stakeAmount"`
}

// RemoteError wraps a failed wallet call with the operation name.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("wallet %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
