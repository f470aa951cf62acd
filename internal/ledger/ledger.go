// Package ledger holds the pure rules of the certificate approval workflow:
// status derivation, role gating, and transition application. It performs no
// I/O; the service layer loads a request, consults the ledger, and persists
// the result.
//
// A request passes three sequential gates before a certificate can be issued:
// zone leader (level 1), pastor (level 2), parish pastor (level 3). A
// rejection at any gate is terminal, as is a full approval.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/parishsoft/be-certificates/internal/errors"
)

// maxLevel is the number of approval gates.
const maxLevel = 3

// RoleForLevel maps an approval level to the role that owns it.
func RoleForLevel(level int) Role {
	switch level {
	case 1:
		return RoleZoneLeader
	case 2:
		return RolePastor
	case 3:
		return RoleParishPastor
	}
	return ""
}

// levelForRole is the inverse of RoleForLevel; 0 means the role never approves.
func levelForRole(role Role) int {
	switch role {
	case RoleZoneLeader:
		return 1
	case RolePastor:
		return 2
	case RoleParishPastor:
		return 3
	}
	return 0
}

// DeriveStatus computes the request status from the approval facts. This is
// the only source of truth for status; nothing in the codebase assigns a
// status directly.
func DeriveStatus(r *CertificateRequest) Status {
	switch {
	case r.RejectionReason != nil:
		return StatusRejected
	case r.Level3 != nil:
		return StatusApproved
	case r.Level2 != nil:
		return StatusAwaitingParishPastor
	case r.Level1 != nil:
		return StatusAwaitingPastor
	default:
		return StatusPending
	}
}

// IsTerminal reports whether no further mutation is permitted.
func IsTerminal(r *CertificateRequest) bool {
	s := DeriveStatus(r)
	return s == StatusApproved || s == StatusRejected
}

// CanAct returns the approval level the role may currently act on. Exactly
// one role can act on a non-terminal request at any time.
func CanAct(role Role, r *CertificateRequest) (int, error) {
	if IsTerminal(r) {
		return 0, errors.New(errors.ErrCodeAlreadyFinal,
			fmt.Sprintf("request is already %s", DeriveStatus(r)))
	}

	level := levelForRole(role)
	if level == 0 {
		return 0, errors.New(errors.ErrCodeUnauthorized,
			fmt.Sprintf("role %s cannot act on certificate requests", role))
	}
	if r.Level(level) != nil {
		return 0, errors.New(errors.ErrCodeUnauthorized,
			fmt.Sprintf("level %d is already decided", level))
	}
	if level > 1 && r.Level(level-1) == nil {
		return 0, errors.New(errors.ErrCodeUnauthorized,
			fmt.Sprintf("request is not yet at the %s gate", role))
	}
	return level, nil
}

// ApplyApproval fills the approval slot for level after re-validating every
// gate condition. The request is mutated in place only when all checks pass.
func ApplyApproval(r *CertificateRequest, level int, actor Actor, comment *string, now time.Time) error {
	if level < 1 || level > maxLevel {
		return errors.InvalidInput("level", "approval level must be 1, 2 or 3")
	}
	if IsTerminal(r) {
		return errors.New(errors.ErrCodeAlreadyFinal,
			fmt.Sprintf("request is already %s", DeriveStatus(r)))
	}
	if RoleForLevel(level) != actor.Role {
		return errors.New(errors.ErrCodeUnauthorized,
			fmt.Sprintf("role %s cannot approve at level %d", actor.Role, level))
	}
	if r.Level(level) != nil {
		// Slot filled between load and apply: first writer wins.
		return errors.New(errors.ErrCodeAlreadyActioned,
			"approval level already actioned")
	}
	// Safety net behind CanAct; unreachable when the gate checks are correct.
	if level > 1 && r.Level(level-1) == nil {
		return errors.New(errors.ErrCodeOutOfOrder,
			"lower approval level is still empty")
	}

	rec := &ApprovalRecord{By: actor.Name, DoneAt: now, Comment: comment}
	switch level {
	case 1:
		r.Level1 = rec
	case 2:
		r.Level2 = rec
	case 3:
		r.Level3 = rec
	}
	r.UpdatedAt = now
	return nil
}

// ApplyRejection marks the request rejected at the actor's current gate.
// Approval comments are optional; rejection reasons are not.
func ApplyRejection(r *CertificateRequest, actor Actor, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return errors.InvalidInput("reason", "rejection reason is required")
	}
	if _, err := CanAct(actor.Role, r); err != nil {
		return err
	}

	name := actor.Name
	r.RejectedBy = &name
	r.RejectedAt = &now
	r.RejectionReason = &reason
	r.UpdatedAt = now
	return nil
}
