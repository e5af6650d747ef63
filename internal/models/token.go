package models

// TokenMetadata describes a lease ownership token (NEP-177 subset)
type TokenMetadata struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Media       *string `json:"media,omitempty"`
}

// Token is the read-only view of a lease rendered as a non-fungible token.
// It is computed on every query and never persisted.
type Token struct {
	TokenID            string            `json:"token_id"`
	OwnerID            string            `json:"owner_id"`
	Metadata           *TokenMetadata    `json:"metadata,omitempty"`
	ApprovedAccountIDs map[string]uint64 `json:"approved_account_ids,omitempty"`
}
