// Package remote calls other parties over JSON-RPC 2.0 on HTTP.
//
// Every call settles to a promise.Result: any transport error, remote error or
// expired context is a promise.Failed outcome, never a returned error.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"leasetoken/internal/promise"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
)

// Method names of the remote interfaces
const (
	MethodNftOnTransfer = "nft_on_transfer"
	MethodNftPayout     = "nft_payout"
)

// OnTransferArgs is sent to a receiver after it has been given a token
type OnTransferArgs struct {
	SenderID        string `json:"sender_id"`
	PreviousOwnerID string `json:"previous_owner_id"`
	TokenID         string `json:"token_id"`
	Msg             string `json:"msg"`
}

// PayoutArgs asks a token contract how proceeds of a sale are split
type PayoutArgs struct {
	TokenID      string `json:"token_id"`
	Balance      string `json:"balance"`
	MaxLenPayout uint32 `json:"max_len_payout"`
}

// Receiver is the on-receive capability of the account a token is sent to.
// A successful payload is expected to be a JSON bool meaning "return the token".
type Receiver interface {
	NftOnTransfer(ctx context.Context, receiverID string, args OnTransferArgs) promise.Result
}

// PayoutOracle answers payout queries for tokens of an allow-listed contract.
// A successful payload is expected to be {"payout": {account: amount}}.
type PayoutOracle interface {
	NftPayout(ctx context.Context, contractID string, args PayoutArgs) promise.Result
}

// Directory resolves account ids to JSON-RPC endpoints
type Directory struct {
	endpoints map[string]string
	template  string
}

// NewDirectory creates a directory from explicit endpoints and an optional
// fallback template containing one %s for the account id
func NewDirectory(endpoints map[string]string, template string) *Directory {
	return &Directory{endpoints: endpoints, template: template}
}

// Endpoint returns the URL serving accountID
func (d *Directory) Endpoint(accountID string) (string, error) {
	if url, ok := d.endpoints[accountID]; ok {
		return url, nil
	}
	if d.template != "" && strings.Contains(d.template, "%s") {
		return fmt.Sprintf(d.template, accountID), nil
	}
	return "", fmt.Errorf("no endpoint known for account %q", accountID)
}

// Client implements Receiver and PayoutOracle
type Client struct {
	directory  *Directory
	httpClient *http.Client
}

// NewClient creates a client resolving accounts through directory
func NewClient(directory *Directory, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{directory: directory, httpClient: httpClient}
}

// NftOnTransfer notifies receiverID that it received a token
func (c *Client) NftOnTransfer(ctx context.Context, receiverID string, args OnTransferArgs) promise.Result {
	return c.call(ctx, receiverID, MethodNftOnTransfer, args)
}

// NftPayout queries contractID for the payout split of a token
func (c *Client) NftPayout(ctx context.Context, contractID string, args PayoutArgs) promise.Result {
	return c.call(ctx, contractID, MethodNftPayout, args)
}

func (c *Client) call(ctx context.Context, accountID, method string, params any) promise.Result {
	endpoint, err := c.directory.Endpoint(accountID)
	if err != nil {
		return promise.Failure(err)
	}

	ch := jhttp.NewChannel(endpoint, &jhttp.ChannelOptions{Client: c.httpClient})
	cli := jrpc2.NewClient(ch, nil)
	defer cli.Close()

	rsp, err := cli.Call(ctx, method, params)
	if err != nil {
		return promise.Failure(fmt.Errorf("%s on %s: %w", method, accountID, err))
	}

	return promise.Success([]byte(rsp.ResultString()))
}
