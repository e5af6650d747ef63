package models

// ListingKey identifies a listing: the token's source contract plus the token id
type ListingKey struct {
	NFTContractID string `json:"nft_contract_id"`
	NFTTokenID    string `json:"nft_token_id"`
}

// Listing is an offer to rent the asset behind a lease ownership token
type Listing struct {
	OwnerID       string `json:"owner_id"`
	ApprovalID    uint64 `json:"approval_id"`
	NFTContractID string `json:"nft_contract_id"`
	NFTTokenID    string `json:"nft_token_id"`

	// Terms demanded by the lender
	FTContractID     string `json:"ft_contract_id"`
	Price            string `json:"price"`
	LeaseStartTsNano uint64 `json:"lease_start_ts_nano"`
	LeaseEndTsNano   uint64 `json:"lease_end_ts_nano"`

	// Payout split returned by the token's source contract
	Payout map[string]string `json:"payout"`
}

// Key returns the unique key of the listing
func (l *Listing) Key() ListingKey {
	return ListingKey{NFTContractID: l.NFTContractID, NFTTokenID: l.NFTTokenID}
}
