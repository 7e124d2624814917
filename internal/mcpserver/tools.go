package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the DataSentinel MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetPartnerRisk = mcp.NewTool("get_partner_risk",
	mcp.WithDescription(
		"Get the risk profile of a data partner: score, behavioural traits, trap hit count, "+
			"whether deception mode is armed and which users are restricted for it."),
	mcp.WithString("partner_id",
		mcp.Required(),
		mcp.Description("The partner identifier (e.g. 'acme')")),
)

var ToolListPartners = mcp.NewTool("list_partners",
	mcp.WithDescription(
		"List every partner the risk engine tracks with score, traits and deception status. "+
			"Use this to find the riskiest partners."),
)

var ToolListRestrictions = mcp.NewTool("list_restrictions",
	mcp.WithDescription(
		"List partners that hit the trap threshold and the users they are blocked from. "+
			"Restrictions are permanent."),
)

var ToolGetTrapLog = mcp.NewTool("get_trap_log",
	mcp.WithDescription(
		"Read the append-only trap log: every honeytoken issuance or unauthorized file access "+
			"attributed to a partner."),
	mcp.WithString("partner_id",
		mcp.Description("Only return entries for this partner")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20)")),
)

var ToolListPartnerAlerts = mcp.NewTool("list_partner_alerts",
	mcp.WithDescription(
		"List partner alerts: deception mode activations and blocks after repeated trap hits."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of alerts to return (default 20)")),
)

var ToolListFileAlerts = mcp.NewTool("list_file_alerts",
	mcp.WithDescription(
		"List file alerts raised when a user tried to open a file they were not granted "+
			"or presented a wrong honeytoken."),
)
