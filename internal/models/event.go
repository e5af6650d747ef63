package models

import "time"

// Event names of the NEP-171 standard
const (
	EventStandard    = "nep171"
	EventVersion     = "1.0.0"
	EventNftMint     = "nft_mint"
	EventNftTransfer = "nft_transfer"
)

// TokenEvent is one ownership event: a mint or a completed transfer.
// Compensating transfers are recorded as a transfer in the reverse direction.
type TokenEvent struct {
	// Identification
	ID    int64  `json:"id,omitempty"`
	Event string `json:"event"` // nft_mint or nft_transfer

	// Ownership change
	OwnerID      string   `json:"owner_id,omitempty"` // nft_mint only
	OldOwnerID   string   `json:"old_owner_id,omitempty"`
	NewOwnerID   string   `json:"new_owner_id,omitempty"`
	AuthorizedID *string  `json:"authorized_id,omitempty"`
	TokenIDs     []string `json:"token_ids"`
	Memo         *string  `json:"memo,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// EventEnvelope is the NEP-297 wrapper written to the event log
type EventEnvelope struct {
	Standard string `json:"standard"`
	Version  string `json:"version"`
	Event    string `json:"event"`
	Data     []any  `json:"data"`
}

// nftTransferData and nftMintData fix the field order of the logged payload
type nftTransferData struct {
	AuthorizedID *string  `json:"authorized_id,omitempty"`
	OldOwnerID   string   `json:"old_owner_id"`
	NewOwnerID   string   `json:"new_owner_id"`
	TokenIDs     []string `json:"token_ids"`
	Memo         *string  `json:"memo,omitempty"`
}

type nftMintData struct {
	OwnerID  string   `json:"owner_id"`
	TokenIDs []string `json:"token_ids"`
	Memo     *string  `json:"memo,omitempty"`
}

// Envelope converts the event into its NEP-297 form
func (e *TokenEvent) Envelope() EventEnvelope {
	var data any
	switch e.Event {
	case EventNftMint:
		data = nftMintData{OwnerID: e.OwnerID, TokenIDs: e.TokenIDs, Memo: e.Memo}
	default:
		data = nftTransferData{
			AuthorizedID: e.AuthorizedID,
			OldOwnerID:   e.OldOwnerID,
			NewOwnerID:   e.NewOwnerID,
			TokenIDs:     e.TokenIDs,
			Memo:         e.Memo,
		}
	}

	return EventEnvelope{
		Standard: EventStandard,
		Version:  EventVersion,
		Event:    e.Event,
		Data:     []any{data},
	}
}
