package client

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/parishsoft/be-certificates/internal/httpclient"
	"github.com/parishsoft/be-certificates/internal/ledger"
)

// RendererClient is a client for the document rendering service. It is only
// called with fully approved requests; the rendering service never sees or
// mutates approval state beyond the read-only snapshot it is handed.
type RendererClient struct {
	client *httpclient.Client
}

// NewRendererClient creates a new renderer client.
func NewRendererClient(baseURL string) *RendererClient {
	return &RendererClient{
		client: httpclient.NewClient(baseURL),
	}
}

// renderRequest is the payload sent to the rendering service.
type renderRequest struct {
	RequestID       string  `json:"request_id"`
	MemberID        string  `json:"member_id"`
	MemberName      string  `json:"member_name"`
	CertificateType string  `json:"certificate_type"`
	Purpose         string  `json:"purpose"`
	ApprovedBy      string  `json:"approved_by"`
	ApprovedAt      string  `json:"approved_at"`
	ZoneID          *string `json:"zone_id,omitempty"`
}

// renderResponse carries the rendered document as base64 PDF bytes.
type renderResponse struct {
	PDFBase64 string `json:"pdf_base64"`
}

// Render produces the certificate PDF for an approved request.
func (c *RendererClient) Render(ctx context.Context, req *ledger.CertificateRequest, member *Member) ([]byte, error) {
	payload := renderRequest{
		RequestID:       req.ID,
		MemberID:        req.MemberID,
		MemberName:      req.MemberName,
		CertificateType: string(req.Type),
		Purpose:         req.Purpose,
	}
	if req.Level3 != nil {
		payload.ApprovedBy = req.Level3.By
		payload.ApprovedAt = req.Level3.DoneAt.Format("2006-01-02")
	}
	if member != nil {
		payload.ZoneID = &member.ZoneID
	}

	var resp renderResponse
	if err := c.client.Post(ctx, "/api/v1/certificates/render", payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}

	pdf, err := base64.StdEncoding.DecodeString(resp.PDFBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered certificate: %w", err)
	}
	return pdf, nil
}
