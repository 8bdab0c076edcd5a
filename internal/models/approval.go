package models

import "time"

type ApprovalType string

const (
	ApprovalDeposit    ApprovalType = "DEPOSIT"
	ApprovalWithdrawal ApprovalType = "WITHDRAWAL"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// PaymentApproval gates wallet mutation in MANUAL mode. At most one PENDING
// approval exists per transaction.
type PaymentApproval struct {
	ID            string         `json:"id"`
	TransactionID string         `json:"transaction_id"`
	Type          ApprovalType   `json:"type"`
	Status        ApprovalStatus `json:"status"`
	PaymentSystem string         `json:"payment_system"`
	AccountNumber string         `json:"account_number,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	ProcessedBy   *string        `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
