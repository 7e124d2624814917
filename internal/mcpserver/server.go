package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all DataSentinel tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("datasentinel", "1.0.0")
	h := NewHandlers(NewSentinelClient(cfg))

	s.AddTool(ToolGetPartnerRisk, h.HandleGetPartnerRisk)
	s.AddTool(ToolListPartners, h.HandleListPartners)
	s.AddTool(ToolListRestrictions, h.HandleListRestrictions)
	s.AddTool(ToolGetTrapLog, h.HandleGetTrapLog)
	s.AddTool(ToolListPartnerAlerts, h.HandleListPartnerAlerts)
	s.AddTool(ToolListFileAlerts, h.HandleListFileAlerts)

	return s
}
