package models

import (
	"errors"
	"fmt"
)

var (
	ErrConfigurationMissing = errors.New("rate configuration missing for period")
	ErrNoSourceData         = errors.New("no attendance records for period")
	ErrDuplicateGeneration  = errors.New("report already generated for period")
	ErrInvalidPercentages   = errors.New("salt percentages must sum to 100")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrLedgerLocked         = errors.New("ledger is locked")
	ErrLedgerNotLocked      = errors.New("ledger is not locked")
	ErrLedgerNotCompleted   = errors.New("ledger is not completed")
	ErrSnapshotNotFound     = errors.New("report snapshot not found")
	ErrLedgerChain          = errors.New("ledger back-reference must point to an earlier period")
)

// Pre-flight issue codes.
const (
	IssueConfigurationMissing = "CONFIGURATION_MISSING"
	IssueInvalidPercentages   = "INVALID_PERCENTAGES"
	IssueNoSourceData         = "NO_SOURCE_DATA"
	IssueDuplicateGeneration  = "DUPLICATE_GENERATION"
)

// PreflightIssue is a blocking condition reported by CanGenerate.
type PreflightIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CompletionError wraps any failure inside the completion transaction.
type CompletionError struct {
	SchoolId string
	Period   Period
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("complete period %s for school %s: %v", e.Period, e.SchoolId, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
