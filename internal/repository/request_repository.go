package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parishsoft/be-certificates/internal/database"
	"github.com/parishsoft/be-certificates/internal/errors"
	"github.com/parishsoft/be-certificates/internal/ledger"
)

const requestColumns = `
	id, member_id, member_name, certificate_type, purpose, request_date,
	level1_by, level1_at, level1_comment,
	level2_by, level2_at, level2_comment,
	level3_by, level3_at, level3_comment,
	rejected_by, rejected_at, rejection_reason,
	version, created_at, updated_at`

// RequestRepository persists certificate requests. Status is never stored:
// only the approval facts are, and readers re-derive status from them.
type RequestRepository struct {
	db *database.DB
}

// NewRequestRepository creates a new RequestRepository.
func NewRequestRepository(db *database.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request. ID and RequestDate are set by the caller.
func (r *RequestRepository) Create(ctx context.Context, req *ledger.CertificateRequest) error {
	query := `
		INSERT INTO certificate_requests
		    (id, member_id, member_name, certificate_type, purpose, request_date, version)
		VALUES ($1, $2, $3, $4::certificate_type, $5, $6, 1)
		RETURNING version, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		req.ID,
		req.MemberID,
		req.MemberName,
		req.Type,
		req.Purpose,
		req.RequestDate,
	).Scan(&req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create certificate request")
	}
	return nil
}

// GetByID retrieves one request.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*ledger.CertificateRequest, error) {
	query := `SELECT` + requestColumns + `
		FROM certificate_requests
		WHERE id = $1
	`

	req, err := r.scanRequest(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("certificate_request", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get certificate request")
	}
	return req, nil
}

// Update persists the approval facts of a previously loaded request, guarded
// by an optimistic version check. A concurrent writer that got there first
// surfaces as ALREADY_ACTIONED; the caller must not retry (re-running the
// same action against the new facts would be refused by the ledger anyway).
func (r *RequestRepository) Update(ctx context.Context, req *ledger.CertificateRequest) error {
	query := `
		UPDATE certificate_requests
		SET level1_by        = $3,  level1_at = $4,  level1_comment = $5,
		    level2_by        = $6,  level2_at = $7,  level2_comment = $8,
		    level3_by        = $9,  level3_at = $10, level3_comment = $11,
		    rejected_by      = $12, rejected_at = $13, rejection_reason = $14,
		    version          = version + 1,
		    updated_at       = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	l1by, l1at, l1c := splitRecord(req.Level1)
	l2by, l2at, l2c := splitRecord(req.Level2)
	l3by, l3at, l3c := splitRecord(req.Level3)

	err := r.db.QueryRow(ctx, query,
		req.ID, req.Version,
		l1by, l1at, l1c,
		l2by, l2at, l2c,
		l3by, l3at, l3c,
		req.RejectedBy, req.RejectedAt, req.RejectionReason,
	).Scan(&req.Version, &req.UpdatedAt)
	if err == pgx.ErrNoRows {
		// The row was loaded moments ago, so a missing match means the
		// version moved underneath us rather than a deleted request.
		return errors.New(errors.ErrCodeAlreadyActioned,
			"certificate request was modified by a concurrent call")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update certificate request")
	}
	return nil
}

// ListByMember returns a member's requests, newest first.
func (r *RequestRepository) ListByMember(ctx context.Context, memberID string) ([]*ledger.CertificateRequest, error) {
	query := `SELECT` + requestColumns + `
		FROM certificate_requests
		WHERE member_id = $1
		ORDER BY request_date DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list member requests")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ListOpen returns requests that are not yet terminal (no rejection and no
// level 3 approval), oldest first so approval queues drain in FIFO order.
func (r *RequestRepository) ListOpen(ctx context.Context) ([]*ledger.CertificateRequest, error) {
	query := `SELECT` + requestColumns + `
		FROM certificate_requests
		WHERE rejection_reason IS NULL
		  AND level3_by IS NULL
		ORDER BY request_date ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list open requests")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ListAll returns every request, newest first.
func (r *RequestRepository) ListAll(ctx context.Context) ([]*ledger.CertificateRequest, error) {
	query := `SELECT` + requestColumns + `
		FROM certificate_requests
		ORDER BY request_date DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list certificate requests")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type requestScanner interface {
	Scan(dest ...any) error
}

func (r *RequestRepository) scanRequest(row requestScanner) (*ledger.CertificateRequest, error) {
	req := &ledger.CertificateRequest{}
	var (
		l1by, l1c, l2by, l2c, l3by, l3c *string
		l1at, l2at, l3at                *time.Time
	)

	err := row.Scan(
		&req.ID,
		&req.MemberID,
		&req.MemberName,
		&req.Type,
		&req.Purpose,
		&req.RequestDate,
		&l1by, &l1at, &l1c,
		&l2by, &l2at, &l2c,
		&l3by, &l3at, &l3c,
		&req.RejectedBy,
		&req.RejectedAt,
		&req.RejectionReason,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Level1 = joinRecord(l1by, l1at, l1c)
	req.Level2 = joinRecord(l2by, l2at, l2c)
	req.Level3 = joinRecord(l3by, l3at, l3c)
	return req, nil
}

func (r *RequestRepository) scanRows(rows pgx.Rows) ([]*ledger.CertificateRequest, error) {
	var reqs []*ledger.CertificateRequest
	for rows.Next() {
		req, err := r.scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan certificate request")
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read certificate requests")
	}
	return reqs, nil
}

// splitRecord flattens an approval slot into its three nullable columns.
func splitRecord(rec *ledger.ApprovalRecord) (by *string, at *time.Time, comment *string) {
	if rec == nil {
		return nil, nil, nil
	}
	b := rec.By
	t := rec.DoneAt
	return &b, &t, rec.Comment
}

// joinRecord rebuilds an approval slot from its columns; nil when unfilled.
func joinRecord(by *string, at *time.Time, comment *string) *ledger.ApprovalRecord {
	if by == nil || at == nil {
		return nil
	}
	return &ledger.ApprovalRecord{By: *by, DoneAt: *at, Comment: comment}
}
