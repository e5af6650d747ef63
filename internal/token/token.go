// Package token maps lease records to the ownership tokens they back.
//
// A token id is derived from the lease id alone, so encoding and decoding need
// neither storage nor network access. Token views are synthesized on read and
// never persisted.
package token

import (
	_ "embed"
	"fmt"
	"strings"

	"leasetoken/internal/models"
)

// Suffix marks a token id as the lender-side ownership token of a lease
const Suffix = "_lender"

//go:embed lease_token.svg
var leaseTokenSVG string

// Encode returns the token id for a lease id
func Encode(leaseID string) string {
	return leaseID + Suffix
}

// Decode returns the lease id behind a token id.
// ok is false for ids that Encode can not have produced.
func Decode(tokenID string) (leaseID string, ok bool) {
	leaseID, ok = strings.CutSuffix(tokenID, Suffix)
	if !ok || leaseID == "" {
		return "", false
	}
	return leaseID, true
}

// Render builds the token view of an active lease
func Render(lease *models.Lease) *models.Token {
	title := fmt.Sprintf("RentApp Lease Ownership Token: %s", lease.LeaseID)
	description := fmt.Sprintf(
		"This is a token representing the ownership of the NFT under the RentApp lease: %s\n"+
			"Leasing NFT's contract: %s\n"+
			"Leasing NFT's token id: %s\n",
		lease.LeaseID, lease.ContractAddr, lease.TokenID,
	)
	media := "data:image/svg+xml;charset=utf-8," + leaseTokenSVG

	return &models.Token{
		TokenID: Encode(lease.LeaseID),
		OwnerID: lease.LenderID,
		Metadata: &models.TokenMetadata{
			Title:       &title,
			Description: &description,
			Media:       &media,
		},
	}
}
