package models

// LeaseState is the lifecycle stage of a lease agreement
type LeaseState string

const (
	LeaseStatePending  LeaseState = "pending"
	LeaseStateActive   LeaseState = "active"
	LeaseStateExpired  LeaseState = "expired"
	LeaseStateFinished LeaseState = "finished"
)

// Lease is one leasing agreement. It is also the backing state of the
// ownership token minted for the lender, so LenderID is the token owner.
type Lease struct {
	// Identification
	LeaseID string `json:"lease_id"`

	// Parties
	LenderID   string `json:"lender_id"`
	BorrowerID string `json:"borrower_id,omitempty"`

	// Leased asset (immutable)
	ContractAddr string `json:"contract_addr"`
	TokenID      string `json:"token_id"`

	// Terms
	FTContractAddr string `json:"ft_contract_addr,omitempty"`
	Price          string `json:"price,omitempty"`
	StartTsNano    uint64 `json:"start_ts_nano"`
	EndTsNano      uint64 `json:"end_ts_nano"`

	State LeaseState `json:"state"`
}
