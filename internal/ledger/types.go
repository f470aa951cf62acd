package ledger

import (
	"strings"
	"time"
)

// ── Domain types for the certificate approval ledger ─────────────────────────

// Role is an actor role supplied by the identity gateway.
type Role string

const (
	RoleMember       Role = "member"
	RoleZoneLeader   Role = "zone_leader"
	RolePastor       Role = "pastor"
	RoleParishPastor Role = "parish_pastor"
)

// ParseRole normalizes a role string ("zone-leader", "Zone Leader", ...).
func ParseRole(s string) (Role, bool) {
	norm := strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"), " ", "_")
	switch Role(norm) {
	case RoleMember, RoleZoneLeader, RolePastor, RoleParishPastor:
		return Role(norm), true
	}
	return "", false
}

// CertificateType is the kind of certificate being requested.
type CertificateType string

const (
	TypeBaptism        CertificateType = "baptism"
	TypeMarriage       CertificateType = "marriage"
	TypeRecommendation CertificateType = "recommendation"
	TypeMembership     CertificateType = "membership"
)

// ParseCertificateType normalizes a certificate type. The legacy dashboard
// used "confirmation" and the misspelling "recommandation" interchangeably
// with "recommendation"; all three are accepted and canonicalized.
func ParseCertificateType(s string) (CertificateType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baptism":
		return TypeBaptism, true
	case "marriage":
		return TypeMarriage, true
	case "recommendation", "recommandation", "confirmation":
		return TypeRecommendation, true
	case "membership":
		return TypeMembership, true
	}
	return "", false
}

// Status is derived from the approval facts, never stored.
type Status string

const (
	// StatusPending awaits the level 1 (zone leader) decision.
	StatusPending Status = "pending"
	// StatusAwaitingPastor has level 1 and awaits the level 2 (pastor) decision.
	StatusAwaitingPastor Status = "awaiting_pastor"
	// StatusAwaitingParishPastor has levels 1-2 and awaits the level 3
	// (parish pastor) decision.
	StatusAwaitingParishPastor Status = "awaiting_parish_pastor"
	// StatusApproved has all three approvals. Terminal.
	StatusApproved Status = "approved"
	// StatusRejected was rejected at some level. Terminal.
	StatusRejected Status = "rejected"
)

// Actor is the authenticated identity behind a call. The identity gateway has
// already verified that the actor genuinely holds Role; the ledger only
// decides whether that role may act on a given request.
type Actor struct {
	Role Role
	Name string
}

// ApprovalRecord is one level's sign-off. Immutable once created.
type ApprovalRecord struct {
	By      string    `json:"by"`
	DoneAt  time.Time `json:"done_at"`
	Comment *string   `json:"comment,omitempty"`
}

// CertificateRequest is one member's request for one certificate.
//
// The three approval slots fill strictly in order (level 1 → 2 → 3). Status
// is always computed from the slots and the rejection facts via DeriveStatus;
// no field stores it. Version increments on every persisted mutation and
// backs the optimistic concurrency check in the store.
type CertificateRequest struct {
	ID          string          `json:"id"`
	MemberID    string          `json:"member_id"`
	MemberName  string          `json:"member_name"` // snapshot at creation time
	Type        CertificateType `json:"certificate_type"`
	Purpose     string          `json:"purpose"`
	RequestDate time.Time       `json:"request_date"`

	Level1 *ApprovalRecord `json:"level1,omitempty"` // zone leader
	Level2 *ApprovalRecord `json:"level2,omitempty"` // pastor
	Level3 *ApprovalRecord `json:"level3,omitempty"` // parish pastor

	RejectedBy      *string    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Level returns the approval slot for a level (1-3), or nil.
func (r *CertificateRequest) Level(level int) *ApprovalRecord {
	switch level {
	case 1:
		return r.Level1
	case 2:
		return r.Level2
	case 3:
		return r.Level3
	}
	return nil
}

// AuditEntry is one immutable record in the approval audit trail.
type AuditEntry struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"request_id"`
	Action       string         `json:"action"` // submitted | approved | rejected
	Level        *int           `json:"level,omitempty"`
	PerformedBy  string         `json:"performed_by"`
	PerformedAt  time.Time      `json:"performed_at"`
	StatusBefore Status         `json:"status_before"`
	StatusAfter  Status         `json:"status_after"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Audit actions.
const (
	AuditActionSubmitted = "submitted"
	AuditActionApproved  = "approved"
	AuditActionRejected  = "rejected"
)
