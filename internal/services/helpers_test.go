package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leasetoken/internal/allowlist"
	"leasetoken/internal/models"
	"leasetoken/internal/orchestrator"
	"leasetoken/internal/promise"
	"leasetoken/internal/remote"
	"leasetoken/internal/storage"
	"leasetoken/internal/token"
)

// recordingEmitter keeps every emitted event
type recordingEmitter struct {
	mu     sync.Mutex
	events []models.TokenEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, event *models.TokenEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *recordingEmitter) Events() []models.TokenEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TokenEvent(nil), r.events...)
}

// fakeReceiver answers nft_on_transfer with a fixed outcome, optionally
// waiting on gate first
type fakeReceiver struct {
	mu     sync.Mutex
	result promise.Result
	gate   chan struct{}
	calls  []remote.OnTransferArgs
}

func (f *fakeReceiver) NftOnTransfer(ctx context.Context, receiverID string, args remote.OnTransferArgs) promise.Result {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	gate := f.gate
	result := f.result
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return promise.Failure(ctx.Err())
		}
	}
	return result
}

func (f *fakeReceiver) Calls() []remote.OnTransferArgs {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.OnTransferArgs(nil), f.calls...)
}

// fakeOracle answers nft_payout with a fixed outcome, optionally waiting on gate first
type fakeOracle struct {
	mu     sync.Mutex
	result promise.Result
	gate   chan struct{}
	calls  []remote.PayoutArgs
}

func (f *fakeOracle) NftPayout(ctx context.Context, contractID string, args remote.PayoutArgs) promise.Result {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	gate := f.gate
	result := f.result
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return promise.Failure(ctx.Err())
		}
	}
	return result
}

func (f *fakeOracle) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type tokenFixture struct {
	repo     *storage.MemoryRepository
	events   *recordingEmitter
	receiver *fakeReceiver
	orch     *orchestrator.Orchestrator
	service  *TokenService
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	f := &tokenFixture{
		repo:     storage.NewMemoryRepository(),
		events:   &recordingEmitter{},
		receiver: &fakeReceiver{result: promise.Success([]byte("false"))},
		orch:     orchestrator.New(),
	}
	f.service = NewTokenService(f.repo, f.events, f.orch, f.receiver, TransferConfig{
		ReceiverCallTimeout: time.Second,
		ResolveTimeout:      time.Second,
	})
	t.Cleanup(f.orch.Wait)
	return f
}

// mint stores an active lease for lender and returns its token id
func (f *tokenFixture) mint(t *testing.T, leaseID, lenderID string) string {
	t.Helper()

	_, err := f.service.Mint(context.Background(), models.Lease{
		LeaseID:      leaseID,
		LenderID:     lenderID,
		ContractAddr: "nft.example",
		TokenID:      "42",
	}, nil)
	if err != nil {
		t.Fatalf("Mint(%s) failed: %v", leaseID, err)
	}
	return token.Encode(leaseID)
}

func (f *tokenFixture) owner(t *testing.T, leaseID string) string {
	t.Helper()

	lease, err := f.repo.GetLease(context.Background(), leaseID)
	if err != nil {
		t.Fatalf("GetLease(%s) failed: %v", leaseID, err)
	}
	return lease.LenderID
}

// transfersOnly drops mint events
func transfersOnly(events []models.TokenEvent) []models.TokenEvent {
	var out []models.TokenEvent
	for _, e := range events {
		if e.Event == models.EventNftTransfer {
			out = append(out, e)
		}
	}
	return out
}

func signedBy(accountID string) models.CallContext {
	return models.CallContext{Predecessor: accountID, Signer: accountID, AttachedDeposit: models.OneYocto}
}

type listingFixture struct {
	repo    *storage.MemoryRepository
	oracle  *fakeOracle
	orch    *orchestrator.Orchestrator
	service *ListingService
}

const (
	marketplaceID = "market.near"
	leaseContract = "lease.near"
)

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()

	f := &listingFixture{
		repo:   storage.NewMemoryRepository(),
		oracle: &fakeOracle{result: promise.Success([]byte(`{"payout":{"carol":"100"}}`))},
		orch:   orchestrator.New(),
	}
	f.service = NewListingService(
		f.repo,
		f.orch,
		f.oracle,
		allowlist.New("nft", leaseContract),
		allowlist.New("ft", "usdc.near"),
		ListingConfig{
			MarketplaceAccountID: marketplaceID,
			PayoutCallTimeout:    time.Second,
			ListingTimeout:       time.Second,
		},
	)
	t.Cleanup(f.orch.Wait)
	return f
}

// relayed is an approval relayed by contractID on behalf of signer
func relayed(contractID, signer string) models.CallContext {
	return models.CallContext{Predecessor: contractID, Signer: signer}
}

func waitDeferred[T any](t *testing.T, d *promise.Deferred[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v, err := d.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Deferred did not settle in time")
	}
	return v, err
}

var errStorageDown = errors.New("storage unavailable")

// faultyLeases fails selected lease operations of the wrapped repository
type faultyLeases struct {
	storage.LeaseRepository
	failIsActive     bool
	failGetLease     bool
	failUpdateLender bool
}

func (f *faultyLeases) IsActive(ctx context.Context, leaseID string) (bool, error) {
	if f.failIsActive {
		return false, errStorageDown
	}
	return f.LeaseRepository.IsActive(ctx, leaseID)
}

func (f *faultyLeases) GetLease(ctx context.Context, leaseID string) (*models.Lease, error) {
	if f.failGetLease {
		return nil, errStorageDown
	}
	return f.LeaseRepository.GetLease(ctx, leaseID)
}

func (f *faultyLeases) UpdateLender(ctx context.Context, leaseID, lenderID string) error {
	if f.failUpdateLender {
		return errStorageDown
	}
	return f.LeaseRepository.UpdateLender(ctx, leaseID, lenderID)
}
