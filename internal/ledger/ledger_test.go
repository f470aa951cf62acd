package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parishsoft/be-certificates/internal/errors"
)

var testTime = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newRequest() *CertificateRequest {
	return &CertificateRequest{
		ID:          "req-1",
		MemberID:    "m1",
		MemberName:  "Anna Okonkwo",
		Type:        TypeBaptism,
		Purpose:     "school",
		RequestDate: testTime,
		Version:     1,
		CreatedAt:   testTime,
		UpdatedAt:   testTime,
	}
}

func approvedAt(r *CertificateRequest, level int, by string) *CertificateRequest {
	rec := &ApprovalRecord{By: by, DoneAt: testTime}
	switch level {
	case 1:
		r.Level1 = rec
	case 2:
		r.Level2 = rec
	case 3:
		r.Level3 = rec
	}
	return r
}

func rejected(r *CertificateRequest, by, reason string) *CertificateRequest {
	at := testTime
	r.RejectedBy = &by
	r.RejectedAt = &at
	r.RejectionReason = &reason
	return r
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name string
		req  *CertificateRequest
		want Status
	}{
		{"no approvals", newRequest(), StatusPending},
		{"level1 only", approvedAt(newRequest(), 1, "zl"), StatusAwaitingPastor},
		{"levels 1-2", approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p"), StatusAwaitingParishPastor},
		{"all levels", approvedAt(approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p"), 3, "pp"), StatusApproved},
		{"rejected early", rejected(newRequest(), "zl", "incomplete"), StatusRejected},
		{"rejected late wins over approvals", rejected(approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p"), "pp", "docs"), StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.req))
			// Derivation is pure: a second call on unchanged facts agrees.
			assert.Equal(t, tt.want, DeriveStatus(tt.req))
		})
	}
}

func TestCanAct(t *testing.T) {
	tests := []struct {
		name      string
		role      Role
		req       *CertificateRequest
		wantLevel int
		wantCode  errors.Code
	}{
		{"zone leader on fresh request", RoleZoneLeader, newRequest(), 1, ""},
		{"pastor before zone leader", RolePastor, newRequest(), 0, errors.ErrCodeUnauthorized},
		{"parish pastor before pastor", RoleParishPastor, approvedAt(newRequest(), 1, "zl"), 0, errors.ErrCodeUnauthorized},
		{"member never acts", RoleMember, newRequest(), 0, errors.ErrCodeUnauthorized},
		{"pastor after zone leader", RolePastor, approvedAt(newRequest(), 1, "zl"), 2, ""},
		{"zone leader twice", RoleZoneLeader, approvedAt(newRequest(), 1, "zl"), 0, errors.ErrCodeUnauthorized},
		{"parish pastor at gate", RoleParishPastor, approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p"), 3, ""},
		{"anyone on rejected", RoleZoneLeader, rejected(newRequest(), "zl", "no"), 0, errors.ErrCodeAlreadyFinal},
		{"anyone on fully approved", RoleParishPastor, approvedAt(approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p"), 3, "pp"), 0, errors.ErrCodeAlreadyFinal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := CanAct(tt.role, tt.req)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, level)
		})
	}
}

func TestCanActExactlyOneRole(t *testing.T) {
	// At every non-terminal stage exactly one role can act.
	stages := []*CertificateRequest{
		newRequest(),
		approvedAt(newRequest(), 1, "zl"),
		approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p"),
	}
	roles := []Role{RoleMember, RoleZoneLeader, RolePastor, RoleParishPastor}

	for i, req := range stages {
		granted := 0
		for _, role := range roles {
			if _, err := CanAct(role, req); err == nil {
				granted++
			}
		}
		assert.Equal(t, 1, granted, "stage %d", i)
	}
}

func TestApplyApproval(t *testing.T) {
	t.Run("fills level1 and advances status", func(t *testing.T) {
		req := newRequest()
		comment := "verified"
		err := ApplyApproval(req, 1, Actor{Role: RoleZoneLeader, Name: "Ruth"}, &comment, testTime)
		require.NoError(t, err)

		require.NotNil(t, req.Level1)
		assert.Equal(t, "Ruth", req.Level1.By)
		assert.Equal(t, "verified", *req.Level1.Comment)
		assert.Equal(t, StatusAwaitingPastor, DeriveStatus(req))
		assert.Nil(t, req.Level2)
		assert.Nil(t, req.Level3)
	})

	t.Run("comment is optional", func(t *testing.T) {
		req := newRequest()
		err := ApplyApproval(req, 1, Actor{Role: RoleZoneLeader, Name: "Ruth"}, nil, testTime)
		require.NoError(t, err)
		assert.Nil(t, req.Level1.Comment)
	})

	t.Run("role level mismatch", func(t *testing.T) {
		req := newRequest()
		err := ApplyApproval(req, 1, Actor{Role: RolePastor, Name: "Eli"}, nil, testTime)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
		assert.Nil(t, req.Level1)
	})

	t.Run("filled slot reports already actioned", func(t *testing.T) {
		req := approvedAt(newRequest(), 1, "zl")
		err := ApplyApproval(req, 1, Actor{Role: RoleZoneLeader, Name: "Ruth"}, nil, testTime)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAlreadyActioned, errors.CodeOf(err))
		assert.Equal(t, "zl", req.Level1.By, "first writer wins")
	})

	t.Run("missing lower level is out of order", func(t *testing.T) {
		req := newRequest()
		err := ApplyApproval(req, 2, Actor{Role: RolePastor, Name: "Eli"}, nil, testTime)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeOutOfOrder, errors.CodeOf(err))
	})

	t.Run("terminal request refuses mutation", func(t *testing.T) {
		req := rejected(newRequest(), "zl", "no")
		err := ApplyApproval(req, 1, Actor{Role: RoleZoneLeader, Name: "Ruth"}, nil, testTime)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAlreadyFinal, errors.CodeOf(err))
	})

	t.Run("full approval chain", func(t *testing.T) {
		req := newRequest()
		require.NoError(t, ApplyApproval(req, 1, Actor{Role: RoleZoneLeader, Name: "Ruth"}, nil, testTime))
		require.NoError(t, ApplyApproval(req, 2, Actor{Role: RolePastor, Name: "Eli"}, nil, testTime))
		require.NoError(t, ApplyApproval(req, 3, Actor{Role: RoleParishPastor, Name: "Amos"}, nil, testTime))
		assert.Equal(t, StatusApproved, DeriveStatus(req))

		// Ordering invariant: level3 implies level2 implies level1.
		require.NotNil(t, req.Level3)
		require.NotNil(t, req.Level2)
		require.NotNil(t, req.Level1)

		err := ApplyApproval(req, 3, Actor{Role: RoleParishPastor, Name: "Amos"}, nil, testTime)
		assert.Equal(t, errors.ErrCodeAlreadyFinal, errors.CodeOf(err))
	})
}

func TestApplyRejection(t *testing.T) {
	t.Run("parish pastor rejects at level3", func(t *testing.T) {
		req := approvedAt(approvedAt(newRequest(), 1, "zl"), 2, "p")
		err := ApplyRejection(req, Actor{Role: RoleParishPastor, Name: "Amos"}, "insufficient documentation", testTime)
		require.NoError(t, err)

		assert.Equal(t, StatusRejected, DeriveStatus(req))
		assert.Equal(t, "insufficient documentation", *req.RejectionReason)
		assert.Equal(t, "Amos", *req.RejectedBy)

		err = ApplyApproval(req, 3, Actor{Role: RoleParishPastor, Name: "Amos"}, nil, testTime)
		assert.Equal(t, errors.ErrCodeAlreadyFinal, errors.CodeOf(err))
	})

	t.Run("empty reason fails without mutation", func(t *testing.T) {
		req := newRequest()
		for _, reason := range []string{"", "   ", "\t"} {
			err := ApplyRejection(req, Actor{Role: RoleZoneLeader, Name: "Ruth"}, reason, testTime)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeValidation, errors.CodeOf(err))
		}
		assert.Nil(t, req.RejectionReason)
		assert.Equal(t, StatusPending, DeriveStatus(req))
	})

	t.Run("role not at gate cannot reject", func(t *testing.T) {
		req := newRequest()
		err := ApplyRejection(req, Actor{Role: RolePastor, Name: "Eli"}, "not eligible", testTime)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
	})

	t.Run("rejection reason set iff rejected", func(t *testing.T) {
		open := approvedAt(newRequest(), 1, "zl")
		assert.Nil(t, open.RejectionReason)
		assert.NotEqual(t, StatusRejected, DeriveStatus(open))

		done := rejected(newRequest(), "zl", "moved away")
		assert.NotNil(t, done.RejectionReason)
		assert.Equal(t, StatusRejected, DeriveStatus(done))
	})
}

func TestParseCertificateType(t *testing.T) {
	tests := []struct {
		in   string
		want CertificateType
		ok   bool
	}{
		{"baptism", TypeBaptism, true},
		{"Marriage", TypeMarriage, true},
		{"membership", TypeMembership, true},
		{"recommendation", TypeRecommendation, true},
		{"recommandation", TypeRecommendation, true}, // legacy misspelling
		{"confirmation", TypeRecommendation, true},   // legacy synonym
		{" baptism ", TypeBaptism, true},
		{"ordination", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCertificateType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"zone_leader":   RoleZoneLeader,
		"zone-leader":   RoleZoneLeader,
		"Zone Leader":   RoleZoneLeader,
		"pastor":        RolePastor,
		"parish_pastor": RoleParishPastor,
		"member":        RoleMember,
	} {
		got, ok := ParseRole(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseRole("deacon")
	assert.False(t, ok)
}
