package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// defaultLimit applies when a tool call omits limit.
const defaultLimit = 20

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SentinelClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SentinelClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGetPartnerRisk shows one partner's risk profile.
func (h *Handlers) HandleGetPartnerRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partnerID := strings.TrimSpace(req.GetString("partner_id", ""))
	if partnerID == "" {
		return mcp.NewToolResultError("partner_id is required"), nil
	}

	raw, err := h.client.GetPartner(ctx, partnerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get partner: %v", err)), nil
	}

	text, err := formatProfile(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse profile: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListPartners lists every tracked partner, riskiest first.
func (h *Handlers) HandleListPartners(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ActivitySummary(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list partners: %v", err)), nil
	}

	text, err := formatPartnerList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse partners: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListRestrictions shows the restriction ledger.
func (h *Handlers) HandleListRestrictions(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Restrictions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list restrictions: %v", err)), nil
	}

	text, err := formatRestrictions(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse restrictions: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetTrapLog reads the trap log.
func (h *Handlers) HandleGetTrapLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	partnerID := req.GetString("partner_id", "")
	limit := req.GetInt("limit", defaultLimit)

	raw, err := h.client.TrapLogs(ctx, partnerID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read trap log: %v", err)), nil
	}

	text, err := formatTrapLog(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse trap log: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListPartnerAlerts reads the partner alert log.
func (h *Handlers) HandleListPartnerAlerts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.PartnerAlerts(ctx, req.GetInt("limit", defaultLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list alerts: %v", err)), nil
	}

	text, err := formatPartnerAlerts(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse alerts: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListFileAlerts reads every file alert.
func (h *Handlers) HandleListFileAlerts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.FileAlerts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list file alerts: %v", err)), nil
	}

	text, err := formatFileAlerts(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse file alerts: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Formatting ---

type profile struct {
	PartnerID  string    `json:"partner_id"`
	Score      int       `json:"score"`
	Traits     []string  `json:"traits"`
	TrapCount  int       `json:"trap_count"`
	LastAccess time.Time `json:"last_access"`
	Deception  bool      `json:"deception_mode"`
	Restricted []string  `json:"restricted_users"`
}

func formatProfile(raw json.RawMessage) (string, error) {
	var resp struct {
		Profile *profile `json:"profile"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if resp.Profile == nil {
		return "", fmt.Errorf("response has no profile")
	}
	p := resp.Profile

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Partner %s\n", p.PartnerID))
	sb.WriteString(fmt.Sprintf("  Score: %d\n", p.Score))
	sb.WriteString(fmt.Sprintf("  Trap hits: %d\n", p.TrapCount))
	if len(p.Traits) > 0 {
		sb.WriteString(fmt.Sprintf("  Traits: %s\n", strings.Join(p.Traits, ", ")))
	}
	if p.Deception {
		sb.WriteString("  Deception mode: ARMED\n")
	} else {
		sb.WriteString("  Deception mode: off\n")
	}
	if len(p.Restricted) > 0 {
		sb.WriteString(fmt.Sprintf("  Restricted users: %s\n", strings.Join(p.Restricted, ", ")))
	}
	if !p.LastAccess.IsZero() {
		sb.WriteString(fmt.Sprintf("  Last access: %s\n", p.LastAccess.UTC().Format(time.RFC3339)))
	}
	return sb.String(), nil
}

func formatPartnerList(raw json.RawMessage) (string, error) {
	var resp struct {
		Partners []struct {
			PartnerID  string   `json:"partner_id"`
			Score      int      `json:"score"`
			Traits     []string `json:"traits"`
			TrapCount  int      `json:"trap_count"`
			Deception  bool     `json:"deception_mode"`
			Restricted bool     `json:"restricted"`
		} `json:"partners"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Partners) == 0 {
		return "No partners tracked yet.", nil
	}

	partners := resp.Partners
	sort.SliceStable(partners, func(i, j int) bool { return partners[i].Score > partners[j].Score })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tracking %d partner(s):\n\n", len(partners)))
	for i, p := range partners {
		var flags []string
		if p.Deception {
			flags = append(flags, "deception")
		}
		if p.Restricted {
			flags = append(flags, "restricted")
		}
		flags = append(flags, p.Traits...)
		sb.WriteString(fmt.Sprintf("%d. %s score=%d traps=%d", i+1, p.PartnerID, p.Score, p.TrapCount))
		if len(flags) > 0 {
			sb.WriteString(" [" + strings.Join(flags, ", ") + "]")
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func formatRestrictions(raw json.RawMessage) (string, error) {
	var resp struct {
		Restricted []struct {
			PartnerID string   `json:"partner_id"`
			Users     []string `json:"blocked_users"`
			Score     int      `json:"score"`
			TrapCount int      `json:"trap_count"`
		} `json:"restricted_partners"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Restricted) == 0 {
		return "No partners are restricted.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d restricted partner(s):\n\n", len(resp.Restricted)))
	for _, r := range resp.Restricted {
		users := "(partner listed, no specific users)"
		if len(r.Users) > 0 {
			users = strings.Join(r.Users, ", ")
		}
		sb.WriteString(fmt.Sprintf("- %s (score %d, %d trap hits): %s\n", r.PartnerID, r.Score, r.TrapCount, users))
	}
	return sb.String(), nil
}

func formatTrapLog(raw json.RawMessage) (string, error) {
	var resp struct {
		Entries []struct {
			PartnerID string    `json:"partner_id"`
			UserID    string    `json:"user_id"`
			TrapHits  int       `json:"trap_hits"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"trap_logs"`
		HasMore bool `json:"has_more"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Entries) == 0 {
		return "Trap log is empty.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d trap event(s):\n\n", len(resp.Entries)))
	for _, e := range resp.Entries {
		sb.WriteString(fmt.Sprintf("%s  %s hit #%d", e.Timestamp.UTC().Format(time.RFC3339), e.PartnerID, e.TrapHits))
		if e.UserID != "" {
			sb.WriteString(" user=" + e.UserID)
		}
		sb.WriteString("\n")
	}
	if resp.HasMore {
		sb.WriteString("\n(more entries available)\n")
	}
	return sb.String(), nil
}

func formatPartnerAlerts(raw json.RawMessage) (string, error) {
	var resp struct {
		Alerts []struct {
			PartnerID string    `json:"partner_id"`
			Event     string    `json:"event"`
			Timestamp time.Time `json:"timestamp"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Alerts) == 0 {
		return "No partner alerts.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d partner alert(s):\n\n", len(resp.Alerts)))
	for _, a := range resp.Alerts {
		sb.WriteString(fmt.Sprintf("%s  %s  %s\n", a.Timestamp.UTC().Format(time.RFC3339), a.PartnerID, a.Event))
	}
	return sb.String(), nil
}

func formatFileAlerts(raw json.RawMessage) (string, error) {
	var resp struct {
		Alerts []struct {
			FileID      string    `json:"file_id"`
			OwnerID     string    `json:"owner_id"`
			RequesterID string    `json:"requester_id"`
			Message     string    `json:"message"`
			Timestamp   time.Time `json:"timestamp"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Alerts) == 0 {
		return "No file alerts.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d file alert(s):\n\n", len(resp.Alerts)))
	for _, a := range resp.Alerts {
		sb.WriteString(fmt.Sprintf("%s  %s tried %s (owner %s): %s\n",
			a.Timestamp.UTC().Format(time.RFC3339), a.RequesterID, a.FileID, a.OwnerID, a.Message))
	}
	return sb.String(), nil
}
