package models

// TokenListResponse represents a paginated list of tokens
type TokenListResponse struct {
	Tokens   []Token `json:"tokens"`
	OwnerID  string  `json:"owner_id,omitempty"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// ListingListResponse represents a paginated list of listings
type ListingListResponse struct {
	Listings []Listing `json:"listings"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// TransferCallResponse reports the outcome of a transfer with receiver notification.
// Status is "resolved" when Reverted is meaningful and "pending" otherwise.
type TransferCallResponse struct {
	TokenID  string `json:"token_id"`
	Status   string `json:"status"`
	Reverted *bool  `json:"reverted,omitempty"`
}

// AcceptedResponse acknowledges a request whose effect is applied asynchronously
type AcceptedResponse struct {
	Status string `json:"status"`
}

// TokenEventListResponse represents the event timeline of a token
type TokenEventListResponse struct {
	TokenID  string       `json:"token_id"`
	Events   []TokenEvent `json:"events"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// TransferRequest is the body of the transfer endpoints
type TransferRequest struct {
	ReceiverID string  `json:"receiver_id"`
	ApprovalID *uint64 `json:"approval_id,omitempty"`
	Memo       *string `json:"memo,omitempty"`
	Msg        string  `json:"msg,omitempty"`
}

// ApprovalRequest is the body of an approval notification from a token contract
type ApprovalRequest struct {
	TokenID    string `json:"token_id"`
	OwnerID    string `json:"owner_id"`
	ApprovalID uint64 `json:"approval_id"`
	Msg        string `json:"msg"`
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}
