package models

// CallContext carries the identities attached to an incoming call.
//
// Predecessor is the account that invoked us directly, Signer is the account
// that signed the originating transaction. For a relayed notification the two
// differ.
type CallContext struct {
	Predecessor     string
	Signer          string
	AttachedDeposit uint64
}

// OneYocto is the only deposit accepted by ownership-changing calls
const OneYocto uint64 = 1
