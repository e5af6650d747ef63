package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"leasetoken/internal/models"

	"github.com/holiman/uint256"
)

// ListingTerms are the lender's terms carried in an approval message
type ListingTerms struct {
	FTContractID     string
	Price            string
	LeaseStartTsNano uint64
	LeaseEndTsNano   uint64
}

// listingMessage mirrors the approval message; every field is required
type listingMessage struct {
	FTContractID     *string         `json:"ft_contract_id"`
	Price            json.RawMessage `json:"price"`
	LeaseStartTsNano json.RawMessage `json:"lease_start_ts_nano"`
	LeaseEndTsNano   json.RawMessage `json:"lease_end_ts_nano"`
}

// ParseListingMessage decodes and validates an approval message.
// Failures wrap models.ErrInvalidArgument.
func ParseListingMessage(msg string) (*ListingTerms, error) {
	var raw listingMessage
	if err := json.Unmarshal([]byte(msg), &raw); err != nil {
		return nil, fmt.Errorf("invalid listing message: %w", errors.Join(models.ErrInvalidArgument, err))
	}

	if raw.FTContractID == nil || *raw.FTContractID == "" {
		return nil, fmt.Errorf("invalid listing message: ft_contract_id is required: %w", models.ErrInvalidArgument)
	}

	price, err := parseU128(raw.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid listing message: price: %w", err)
	}

	start, err := parseU64(raw.LeaseStartTsNano)
	if err != nil {
		return nil, fmt.Errorf("invalid listing message: lease_start_ts_nano: %w", err)
	}

	end, err := parseU64(raw.LeaseEndTsNano)
	if err != nil {
		return nil, fmt.Errorf("invalid listing message: lease_end_ts_nano: %w", err)
	}

	return &ListingTerms{
		FTContractID:     *raw.FTContractID,
		Price:            price,
		LeaseStartTsNano: start,
		LeaseEndTsNano:   end,
	}, nil
}

// payoutResponse mirrors the payout oracle answer
type payoutResponse struct {
	Payout map[string]json.RawMessage `json:"payout"`
}

// ParsePayout decodes a payout answer holding at most maxLen entries of u128 amounts
func ParsePayout(payload []byte, maxLen uint32) (map[string]string, error) {
	var raw payoutResponse
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid payout: %w", errors.Join(models.ErrInvalidArgument, err))
	}
	if raw.Payout == nil {
		return nil, fmt.Errorf("invalid payout: payout is required: %w", models.ErrInvalidArgument)
	}
	if uint32(len(raw.Payout)) > maxLen {
		return nil, fmt.Errorf("invalid payout: %d entries exceed limit %d: %w", len(raw.Payout), maxLen, models.ErrInvalidArgument)
	}

	payout := make(map[string]string, len(raw.Payout))
	for account, amount := range raw.Payout {
		if account == "" {
			return nil, fmt.Errorf("invalid payout: empty account: %w", models.ErrInvalidArgument)
		}
		value, err := parseU128(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid payout for %s: %w", account, err)
		}
		payout[account] = value
	}

	return payout, nil
}

// parseU128 accepts a decimal string or a JSON number and returns its canonical decimal form
func parseU128(raw json.RawMessage) (string, error) {
	text, err := numberText(raw)
	if err != nil {
		return "", err
	}

	value, err := uint256.FromDecimal(text)
	if err != nil {
		return "", fmt.Errorf("%q is not a decimal amount: %w", text, models.ErrInvalidArgument)
	}
	if value.BitLen() > 128 {
		return "", fmt.Errorf("%q does not fit in 128 bits: %w", text, models.ErrInvalidArgument)
	}
	return value.Dec(), nil
}

// parseU64 accepts a decimal string or a JSON number
func parseU64(raw json.RawMessage) (uint64, error) {
	text, err := numberText(raw)
	if err != nil {
		return 0, err
	}

	// a single leading plus sign is accepted, as for u128 amounts
	value, err := strconv.ParseUint(strings.TrimPrefix(text, "+"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a u64: %w", text, models.ErrInvalidArgument)
	}
	return value, nil
}

func numberText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("value is required: %w", models.ErrInvalidArgument)
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", fmt.Errorf("malformed string: %w", models.ErrInvalidArgument)
		}
		return text, nil
	}

	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", fmt.Errorf("expected a number or decimal string: %w", models.ErrInvalidArgument)
	}
	return number.String(), nil
}
