package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"leasetoken/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

// Migrate creates the tables used by the repository if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	statements := strings.Split(schemaSQL, ";")

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	applied := 0
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", applied+1, err)
		}
		applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("Database schema applied", "statements", applied)
	return nil
}

// =============================================================================
// LEASES
// =============================================================================

// GetLease retrieves a lease by lease ID
func (r *PostgresRepository) GetLease(ctx context.Context, leaseID string) (*models.Lease, error) {
	query := `
		SELECT
			lease_id, lender_id, borrower_id, contract_addr, token_id,
			ft_contract_addr, price, start_ts_nano, end_ts_nano, state
		FROM leases
		WHERE lease_id = $1
	`

	lease, err := scanLease(r.pool.QueryRow(ctx, query, leaseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lease %s: %w", leaseID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}

	return lease, nil
}

// InsertLease saves a new lease, adding it to the active set when it is active
func (r *PostgresRepository) InsertLease(ctx context.Context, lease *models.Lease) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO leases (
			lease_id, lender_id, borrower_id, contract_addr, token_id,
			ft_contract_addr, price, start_ts_nano, end_ts_nano, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (lease_id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query,
		lease.LeaseID,
		lease.LenderID,
		lease.BorrowerID,
		lease.ContractAddr,
		lease.TokenID,
		lease.FTContractAddr,
		lease.Price,
		int64(lease.StartTsNano),
		int64(lease.EndTsNano),
		string(lease.State),
	)
	if err != nil {
		return fmt.Errorf("failed to save lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease %s: %w", lease.LeaseID, models.ErrConflict)
	}

	if lease.State == models.LeaseStateActive {
		if _, err := tx.Exec(ctx, `INSERT INTO active_lease_ids (lease_id) VALUES ($1)`, lease.LeaseID); err != nil {
			return fmt.Errorf("failed to activate lease: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateLender sets the lender of an existing lease
func (r *PostgresRepository) UpdateLender(ctx context.Context, leaseID, lenderID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leases SET lender_id = $2 WHERE lease_id = $1`, leaseID, lenderID)
	if err != nil {
		return fmt.Errorf("failed to update lender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease %s: %w", leaseID, models.ErrNotFound)
	}
	return nil
}

// SetLeaseState updates the lease state and the active set in one transaction
func (r *PostgresRepository) SetLeaseState(ctx context.Context, leaseID string, state models.LeaseState) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE leases SET state = $2 WHERE lease_id = $1`, leaseID, string(state))
	if err != nil {
		return fmt.Errorf("failed to update lease state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lease %s: %w", leaseID, models.ErrNotFound)
	}

	if state == models.LeaseStateActive {
		_, err = tx.Exec(ctx, `INSERT INTO active_lease_ids (lease_id) VALUES ($1) ON CONFLICT DO NOTHING`, leaseID)
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM active_lease_ids WHERE lease_id = $1`, leaseID)
	}
	if err != nil {
		return fmt.Errorf("failed to update active set: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// IsActive reports whether the lease id is in the active set
func (r *PostgresRepository) IsActive(ctx context.Context, leaseID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM active_lease_ids WHERE lease_id = $1)`
	if err := r.pool.QueryRow(ctx, query, leaseID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active lease: %w", err)
	}
	return exists, nil
}

// ListActiveLeasesByLender lists active leases held by a lender with pagination
func (r *PostgresRepository) ListActiveLeasesByLender(ctx context.Context, lenderID string, limit, offset int) ([]*models.Lease, error) {
	query := `
		SELECT
			l.lease_id, l.lender_id, l.borrower_id, l.contract_addr, l.token_id,
			l.ft_contract_addr, l.price, l.start_ts_nano, l.end_ts_nano, l.state
		FROM leases l
		JOIN active_lease_ids a ON a.lease_id = l.lease_id
		WHERE l.lender_id = $1
		ORDER BY l.lease_id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, lenderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}
	defer rows.Close()

	var leases []*models.Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		leases = append(leases, lease)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leases: %w", err)
	}

	return leases, nil
}

func scanLease(row pgx.Row) (*models.Lease, error) {
	var lease models.Lease
	var startTs, endTs int64
	var state string

	err := row.Scan(
		&lease.LeaseID,
		&lease.LenderID,
		&lease.BorrowerID,
		&lease.ContractAddr,
		&lease.TokenID,
		&lease.FTContractAddr,
		&lease.Price,
		&startTs,
		&endTs,
		&state,
	)
	if err != nil {
		return nil, err
	}

	lease.StartTsNano = uint64(startTs)
	lease.EndTsNano = uint64(endTs)
	lease.State = models.LeaseState(state)
	return &lease, nil
}

// =============================================================================
// LISTINGS
// =============================================================================

// GetListing retrieves a listing by its key
func (r *PostgresRepository) GetListing(ctx context.Context, key models.ListingKey) (*models.Listing, error) {
	query := `
		SELECT
			owner_id, approval_id, nft_contract_id, nft_token_id, ft_contract_id,
			price, lease_start_ts_nano, lease_end_ts_nano, payout
		FROM listings
		WHERE nft_contract_id = $1 AND nft_token_id = $2
	`

	listing, err := scanListing(r.pool.QueryRow(ctx, query, key.NFTContractID, key.NFTTokenID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("listing %s/%s: %w", key.NFTContractID, key.NFTTokenID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	return listing, nil
}

// ListingExists reports whether a listing is stored under key
func (r *PostgresRepository) ListingExists(ctx context.Context, key models.ListingKey) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM listings WHERE nft_contract_id = $1 AND nft_token_id = $2)`
	if err := r.pool.QueryRow(ctx, query, key.NFTContractID, key.NFTTokenID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check listing existence: %w", err)
	}
	return exists, nil
}

// InsertListing saves a listing unless one already exists for its key
func (r *PostgresRepository) InsertListing(ctx context.Context, listing *models.Listing) error {
	payoutJSON, err := json.Marshal(listing.Payout)
	if err != nil {
		return fmt.Errorf("failed to marshal payout: %w", err)
	}

	query := `
		INSERT INTO listings (
			nft_contract_id, nft_token_id, owner_id, approval_id, ft_contract_id,
			price, lease_start_ts_nano, lease_end_ts_nano, payout
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (nft_contract_id, nft_token_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		listing.NFTContractID,
		listing.NFTTokenID,
		listing.OwnerID,
		int64(listing.ApprovalID),
		listing.FTContractID,
		listing.Price,
		int64(listing.LeaseStartTsNano),
		int64(listing.LeaseEndTsNano),
		payoutJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s/%s: %w", listing.NFTContractID, listing.NFTTokenID, models.ErrConflict)
	}

	return nil
}

// ListListings lists listings with pagination, newest first
func (r *PostgresRepository) ListListings(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	query := `
		SELECT
			owner_id, approval_id, nft_contract_id, nft_token_id, ft_contract_id,
			price, lease_start_ts_nano, lease_end_ts_nano, payout
		FROM listings
		ORDER BY created_at DESC, nft_contract_id ASC, nft_token_id ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}

func scanListing(row pgx.Row) (*models.Listing, error) {
	var listing models.Listing
	var approvalID, startTs, endTs int64
	var payoutJSON []byte

	err := row.Scan(
		&listing.OwnerID,
		&approvalID,
		&listing.NFTContractID,
		&listing.NFTTokenID,
		&listing.FTContractID,
		&listing.Price,
		&startTs,
		&endTs,
		&payoutJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payoutJSON, &listing.Payout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout: %w", err)
	}

	listing.ApprovalID = uint64(approvalID)
	listing.LeaseStartTsNano = uint64(startTs)
	listing.LeaseEndTsNano = uint64(endTs)
	return &listing, nil
}

// =============================================================================
// EVENTS
// =============================================================================

// SaveTokenEvent appends a token event
func (r *PostgresRepository) SaveTokenEvent(ctx context.Context, event *models.TokenEvent) error {
	query := `
		INSERT INTO token_events (
			event, owner_id, old_owner_id, new_owner_id, authorized_id,
			token_ids, memo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		event.Event,
		event.OwnerID,
		event.OldOwnerID,
		event.NewOwnerID,
		event.AuthorizedID,
		event.TokenIDs,
		event.Memo,
		event.Timestamp,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to save token event: %w", err)
	}

	return nil
}

// ListTokenEvents lists events touching a token, oldest first
func (r *PostgresRepository) ListTokenEvents(ctx context.Context, tokenID string, limit, offset int) ([]*models.TokenEvent, error) {
	query := `
		SELECT
			id, event, owner_id, old_owner_id, new_owner_id, authorized_id,
			token_ids, memo, created_at
		FROM token_events
		WHERE token_ids @> ARRAY[$1]::text[]
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, tokenID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list token events: %w", err)
	}
	defer rows.Close()

	var events []*models.TokenEvent
	for rows.Next() {
		var event models.TokenEvent
		err := rows.Scan(
			&event.ID,
			&event.Event,
			&event.OwnerID,
			&event.OldOwnerID,
			&event.NewOwnerID,
			&event.AuthorizedID,
			&event.TokenIDs,
			&event.Memo,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token events: %w", err)
	}

	return events, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
