package model

import (
	"fmt"
	"strings"
)

// PositionPlan is the computed range for one bundle slot.
type PositionPlan struct {
	Index     int   `json:"index"`
	TickLower int32 `json:"tick_lower"`
	TickUpper int32 `json:"tick_upper"`
	InRange   bool  `json:"in_range"`
}

// AllocationResult splits funding across positions.
type AllocationResult struct {
	// SwapBatch runs before the deposits. It swaps half the SOL, or only
	// wraps the deposit SOL when Estimated is set.
	SwapBatch         *TransactionBatch `json:"swap_batch,omitempty"`
	TokenAPerPosition uint64            `json:"token_a_per_position"`
	TokenBPerPosition uint64            `json:"token_b_per_position"`
	// Estimated is set when the swap quote failed and the amounts come
	// from the current price instead.
	Estimated bool `json:"estimated"`
}

// FailurePolicy selects how the submission loop reacts to a failed transaction.
type FailurePolicy int

const (
	AbortOnFirstError FailurePolicy = iota
	ContinueOnError
)

func (p FailurePolicy) String() string {
	switch p {
	case AbortOnFirstError:
		return "abort"
	case ContinueOnError:
		return "continue"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseFailurePolicy accepts "abort" or "continue".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort", "abort-on-first-error", "fail-fast":
		return AbortOnFirstError, nil
	case "continue", "continue-on-error", "best-effort":
		return ContinueOnError, nil
	default:
		return 0, fmt.Errorf("%w: unknown failure policy %q", ErrInvalidParameter, s)
	}
}

// PlanResult is everything a caller needs to review and submit a run.
type PlanResult struct {
	Pool           Pool               `json:"pool"`
	Plans          []PositionPlan     `json:"plans"`
	Batches        []TransactionBatch `json:"batches"`
	TotalBatches   int                `json:"total_batches"`
	TotalPositions int                `json:"total_positions"`
	CurrentPrice   float64            `json:"current_price"`
	SkippedIndices []int              `json:"skipped_indices"`
	Allocation     *AllocationResult  `json:"allocation,omitempty"`
	Policy         FailurePolicy      `json:"-"`
}
