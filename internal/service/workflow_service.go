package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parishsoft/be-certificates/internal/client"
	"github.com/parishsoft/be-certificates/internal/errors"
	"github.com/parishsoft/be-certificates/internal/ledger"
	"github.com/parishsoft/be-certificates/internal/logger"
)

// RequestStore is the durability boundary for certificate requests. Update
// must enforce the optimistic version check: a concurrent mutation of the
// same request surfaces as ALREADY_ACTIONED.
type RequestStore interface {
	Create(ctx context.Context, req *ledger.CertificateRequest) error
	GetByID(ctx context.Context, id string) (*ledger.CertificateRequest, error)
	Update(ctx context.Context, req *ledger.CertificateRequest) error
	ListByMember(ctx context.Context, memberID string) ([]*ledger.CertificateRequest, error)
	ListOpen(ctx context.Context) ([]*ledger.CertificateRequest, error)
	ListAll(ctx context.Context) ([]*ledger.CertificateRequest, error)
}

// AuditLog records immutable approval events.
type AuditLog interface {
	Append(ctx context.Context, entry *ledger.AuditEntry) error
	GetByRequestID(ctx context.Context, requestID string) ([]*ledger.AuditEntry, error)
}

// MemberDirectory resolves member records from the directory service.
type MemberDirectory interface {
	ValidateMember(ctx context.Context, memberID string) (bool, string, error)
	GetMember(ctx context.Context, memberID string) (*client.Member, error)
}

// CertificateRenderer produces the final document for an approved request.
type CertificateRenderer interface {
	Render(ctx context.Context, req *ledger.CertificateRequest, member *client.Member) ([]byte, error)
}

// Notifier publishes workflow events. Implementations must be non-fatal.
type Notifier interface {
	PublishRequestEvent(eventType string, req *ledger.CertificateRequest, actor ledger.Actor, payload map[string]any)
}

// Notification event types.
const (
	EventRequestSubmitted = "request_submitted"
	EventRequestApproved  = "request_approved"
	EventRequestRejected  = "request_rejected"
	EventCertificateReady = "certificate_ready"
)

// WorkflowService owns the collection of certificate requests and mediates
// every create and transition through the approval ledger. Ledger policy
// errors pass through to callers untranslated.
type WorkflowService struct {
	store    RequestStore
	audit    AuditLog
	members  MemberDirectory
	renderer CertificateRenderer
	notifier Notifier
	log      *logger.Logger
}

// NewWorkflowService creates a new WorkflowService.
func NewWorkflowService(
	store RequestStore,
	audit AuditLog,
	members MemberDirectory,
	renderer CertificateRenderer,
	notifier Notifier,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		store:    store,
		audit:    audit,
		members:  members,
		renderer: renderer,
		notifier: notifier,
		log:      log,
	}
}

// CreateRequestInput carries the fields a member supplies when requesting a
// certificate. MemberName is snapshotted onto the request and never
// re-derived from the member record afterwards.
type CreateRequestInput struct {
	MemberID        string `json:"member_id"`
	MemberName      string `json:"member_name"`
	CertificateType string `json:"certificate_type"`
	Purpose         string `json:"purpose"`
}

// ── Create ────────────────────────────────────────────────────────────────────

// Create validates input, verifies the member against the directory, and
// persists a new request in its initial (pending) state.
func (s *WorkflowService) Create(ctx context.Context, input *CreateRequestInput) (*ledger.CertificateRequest, error) {
	if strings.TrimSpace(input.MemberID) == "" {
		return nil, errors.InvalidInput("member_id", "member id is required")
	}
	if strings.TrimSpace(input.MemberName) == "" {
		return nil, errors.InvalidInput("member_name", "member name is required")
	}
	if strings.TrimSpace(input.Purpose) == "" {
		return nil, errors.InvalidInput("purpose", "purpose is required")
	}

	certType, ok := ledger.ParseCertificateType(input.CertificateType)
	if !ok {
		return nil, errors.InvalidInput("certificate_type",
			"must be one of baptism, marriage, recommendation, membership")
	}

	valid, msg, err := s.members.ValidateMember(ctx, input.MemberID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "member directory unavailable")
	}
	if !valid {
		if msg == "" {
			msg = "member is not eligible to request certificates"
		}
		return nil, errors.InvalidInput("member_id", msg)
	}

	now := time.Now().UTC()
	req := &ledger.CertificateRequest{
		ID:          uuid.NewString(),
		MemberID:    input.MemberID,
		MemberName:  input.MemberName,
		Type:        certType,
		Purpose:     strings.TrimSpace(input.Purpose),
		RequestDate: now,
	}

	if err := s.store.Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Str("member_id", req.MemberID).
		Str("certificate_type", string(req.Type)).
		Msg("Certificate request created")

	actor := ledger.Actor{Role: ledger.RoleMember, Name: input.MemberName}
	s.appendAudit(ctx, &ledger.AuditEntry{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		Action:       ledger.AuditActionSubmitted,
		PerformedBy:  input.MemberName,
		PerformedAt:  now,
		StatusBefore: ledger.StatusPending,
		StatusAfter:  ledger.StatusPending,
		Metadata:     map[string]any{"certificate_type": string(req.Type), "purpose": req.Purpose},
	})
	s.notifier.PublishRequestEvent(EventRequestSubmitted, req, actor, nil)

	return req, nil
}

// ── Approve ───────────────────────────────────────────────────────────────────

// Approve records one level's sign-off. The actor's role decides the level;
// the ledger decides legality. The persisted write is version-checked, so a
// concurrent decision on the same request loses with ALREADY_ACTIONED.
func (s *WorkflowService) Approve(ctx context.Context, requestID string, actor ledger.Actor, comment *string) (*ledger.CertificateRequest, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	statusBefore := ledger.DeriveStatus(req)

	level, err := ledger.CanAct(actor.Role, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := ledger.ApplyApproval(req, level, actor, comment, now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}

	statusAfter := ledger.DeriveStatus(req)
	s.log.Info().
		Str("request_id", req.ID).
		Int("level", level).
		Str("actor", actor.Name).
		Str("status", string(statusAfter)).
		Msg("Approval recorded")

	s.appendAudit(ctx, &ledger.AuditEntry{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		Action:       ledger.AuditActionApproved,
		Level:        &level,
		PerformedBy:  actor.Name,
		PerformedAt:  now,
		StatusBefore: statusBefore,
		StatusAfter:  statusAfter,
	})

	s.notifier.PublishRequestEvent(EventRequestApproved, req, actor, map[string]any{"level": level})
	if statusAfter == ledger.StatusApproved {
		s.notifier.PublishRequestEvent(EventCertificateReady, req, actor, nil)
	}

	return req, nil
}

// ── Reject ────────────────────────────────────────────────────────────────────

// Reject terminates the request at the actor's current gate. The reason is
// validated before any load so callers get a fast, specific error.
func (s *WorkflowService) Reject(ctx context.Context, requestID string, actor ledger.Actor, reason string) (*ledger.CertificateRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.InvalidInput("reason", "rejection reason is required")
	}

	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	statusBefore := ledger.DeriveStatus(req)

	level, err := ledger.CanAct(actor.Role, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := ledger.ApplyRejection(req, actor, reason, now); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, req); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("request_id", req.ID).
		Int("level", level).
		Str("actor", actor.Name).
		Msg("Request rejected")

	s.appendAudit(ctx, &ledger.AuditEntry{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		Action:       ledger.AuditActionRejected,
		Level:        &level,
		PerformedBy:  actor.Name,
		PerformedAt:  now,
		StatusBefore: statusBefore,
		StatusAfter:  ledger.StatusRejected,
		Metadata:     map[string]any{"reason": reason},
	})
	s.notifier.PublishRequestEvent(EventRequestRejected, req, actor, map[string]any{"reason": reason})

	return req, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Get returns one request.
func (s *WorkflowService) Get(ctx context.Context, requestID string) (*ledger.CertificateRequest, error) {
	return s.store.GetByID(ctx, requestID)
}

// ListMine returns a member's requests, newest first.
func (s *WorkflowService) ListMine(ctx context.Context, memberID string) ([]*ledger.CertificateRequest, error) {
	if strings.TrimSpace(memberID) == "" {
		return nil, errors.InvalidInput("member_id", "member id is required")
	}
	return s.store.ListByMember(ctx, memberID)
}

// ListPendingFor returns the actionable queue for a role: every request the
// role could approve or reject right now. The store prefilters open requests;
// the role gate itself has exactly one implementation, in the ledger.
func (s *WorkflowService) ListPendingFor(ctx context.Context, role ledger.Role) ([]*ledger.CertificateRequest, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	queue := make([]*ledger.CertificateRequest, 0, len(open))
	for _, req := range open {
		if _, err := ledger.CanAct(role, req); err == nil {
			queue = append(queue, req)
		}
	}
	return queue, nil
}

// ListAll returns every request, newest first.
func (s *WorkflowService) ListAll(ctx context.Context) ([]*ledger.CertificateRequest, error) {
	return s.store.ListAll(ctx)
}

// History returns the audit trail for a request.
func (s *WorkflowService) History(ctx context.Context, requestID string) ([]*ledger.AuditEntry, error) {
	if _, err := s.store.GetByID(ctx, requestID); err != nil {
		return nil, err
	}
	return s.audit.GetByRequestID(ctx, requestID)
}

// ── Certificate rendering ─────────────────────────────────────────────────────

// Certificate renders the PDF document for a fully approved request. The
// renderer is never invoked for a request in any other state.
func (s *WorkflowService) Certificate(ctx context.Context, requestID string) ([]byte, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if status := ledger.DeriveStatus(req); status != ledger.StatusApproved {
		return nil, errors.New(errors.ErrCodeConflict,
			"certificate can only be issued for approved requests (status: "+string(status)+")")
	}

	// Member attributes enrich the document; the request snapshot is the
	// fallback when the directory is unavailable.
	member, err := s.members.GetMember(ctx, req.MemberID)
	if err != nil {
		s.log.Warn().Err(err).Str("member_id", req.MemberID).Msg("Could not fetch member for rendering; using request snapshot")
		member = nil
	}

	pdf, err := s.renderer.Render(ctx, req, member)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to render certificate")
	}
	return pdf, nil
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// appendAudit writes an audit entry and logs a warning on failure (never
// returns error).
func (s *WorkflowService) appendAudit(ctx context.Context, entry *ledger.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("request_id", entry.RequestID).
			Str("action", entry.Action).
			Msg("Failed to write audit log entry")
	}
}
