package handler

import (
	"encoding/json"
	"net/http"

	"github.com/parishsoft/be-certificates/internal/errors"
	"github.com/parishsoft/be-certificates/internal/ledger"
	"github.com/parishsoft/be-certificates/internal/logger"
	"github.com/parishsoft/be-certificates/internal/service"
)

// Identity headers set by the platform gateway after authentication. The
// gateway is the trust boundary; this service only validates action legality
// for the supplied role.
const (
	headerActorRole = "X-Actor-Role"
	headerActorName = "X-Actor-Name"
	headerMemberID  = "X-Member-Id"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	service *service.WorkflowService
	log     *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(svc *service.WorkflowService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
		log:     log,
	}
}

// actorFromRequest reads the trusted identity headers.
func actorFromRequest(r *http.Request) (ledger.Actor, error) {
	role, ok := ledger.ParseRole(r.Header.Get(headerActorRole))
	if !ok {
		return ledger.Actor{}, errors.InvalidInput(headerActorRole, "missing or unknown actor role")
	}
	name := r.Header.Get(headerActorName)
	if name == "" {
		return ledger.Actor{}, errors.InvalidInput(headerActorName, "actor name is required")
	}
	return ledger.Actor{Role: role, Name: name}, nil
}

// CreateRequest handles certificate request creation.
func (h *HTTPHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input service.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Members request their own certificates; the gateway's member id wins
	// over whatever the body claims.
	if memberID := r.Header.Get(headerMemberID); memberID != "" {
		input.MemberID = memberID
	}

	req, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, newRequestResponse(req))
}

// GetRequest handles single-request reads.
func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newRequestResponse(req))
}

// ListRequests returns the full collection, newest first.
func (h *HTTPHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reqs, err := h.service.ListAll(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newListResponse(reqs))
}

// ListMine returns the calling member's requests.
func (h *HTTPHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	memberID := r.Header.Get(headerMemberID)
	if memberID == "" {
		memberID = r.URL.Query().Get("member_id")
	}

	reqs, err := h.service.ListMine(r.Context(), memberID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newListResponse(reqs))
}

// ListPending returns the caller's actionable queue.
func (h *HTTPHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	reqs, err := h.service.ListPendingFor(r.Context(), actor.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newListResponse(reqs))
}

// ApproveRequest records one level's approval.
func (h *HTTPHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var body struct {
		ID      string  `json:"id"`
		Comment *string `json:"comment,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := h.service.Approve(r.Context(), body.ID, actor, body.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newRequestResponse(req))
}

// RejectRequest rejects a request at the actor's gate.
func (h *HTTPHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var body struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := h.service.Reject(r.Context(), body.ID, actor, body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newRequestResponse(req))
}

// GetHistory returns the audit trail for one request.
func (h *HTTPHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// GetCertificate streams the rendered PDF for an approved request.
func (h *HTTPHandler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	pdf, err := h.service.Certificate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="certificate-`+id+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// ── response shapes ───────────────────────────────────────────────────────────

// requestResponse is a CertificateRequest plus its derived status. Status is
// computed at serialization time; it is never read from storage.
type requestResponse struct {
	*ledger.CertificateRequest
	Status ledger.Status `json:"status"`
}

func newRequestResponse(req *ledger.CertificateRequest) requestResponse {
	return requestResponse{CertificateRequest: req, Status: ledger.DeriveStatus(req)}
}

func newListResponse(reqs []*ledger.CertificateRequest) map[string]any {
	out := make([]requestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, newRequestResponse(req))
	}
	return map[string]any{"requests": out, "total": len(out)}
}

// ── write helpers ─────────────────────────────────────────────────────────────

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	h.writeJSON(w, status, map[string]string{
		"code":  string(errors.CodeOf(err)),
		"error": errors.MessageOf(err),
	})
}
