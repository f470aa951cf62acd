package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/parishsoft/be-certificates/internal/httpclient"
)

// MembersClient is a client for the member directory service.
type MembersClient struct {
	client *httpclient.Client
}

// NewMembersClient creates a new member directory client.
func NewMembersClient(baseURL string) *MembersClient {
	return &MembersClient{
		client: httpclient.NewClient(baseURL),
	}
}

// Member is the subset of member attributes this service consumes.
type Member struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	ZoneID   string `json:"zone_id"`
	Active   bool   `json:"active"`
}

// ValidateMemberResponse is returned by the validate endpoint.
type ValidateMemberResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// ValidateMember checks that a member exists and is active.
func (c *MembersClient) ValidateMember(ctx context.Context, memberID string) (bool, string, error) {
	path := fmt.Sprintf("/api/v1/members/validate?id=%s", url.QueryEscape(memberID))

	var resp ValidateMemberResponse
	if err := c.client.Get(ctx, path, &resp); err != nil {
		return false, "", fmt.Errorf("failed to validate member: %w", err)
	}

	return resp.Valid, resp.Message, nil
}

// GetMember fetches a member's directory record.
func (c *MembersClient) GetMember(ctx context.Context, memberID string) (*Member, error) {
	path := fmt.Sprintf("/api/v1/members/get?id=%s", url.QueryEscape(memberID))

	var member Member
	if err := c.client.Get(ctx, path, &member); err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &member, nil
}
