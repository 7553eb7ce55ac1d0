package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentic-research/hl7find/api"
	"github.com/agentic-research/hl7find/internal/finder"
	"github.com/agentic-research/hl7find/internal/hl7"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const toolFindStructures = "find_structures"

// Handler serves finder queries over MCP.
type Handler struct {
	profiles hl7.Profiles
	logger   *zap.Logger
}

func NewHandler(profiles hl7.Profiles, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{profiles: profiles, logger: logger}
}

// NewServer returns an MCP server exposing the find_structures tool.
func NewServer(h *Handler, version string) *server.MCPServer {
	s := server.NewMCPServer("hl7find", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTool(findTool(), h.FindStructures)
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func ServeStdio(h *Handler, version string) error {
	return server.ServeStdio(NewServer(h, version))
}

func findTool() mcp.Tool {
	return mcp.NewTool(toolFindStructures,
		mcp.WithDescription("Find segments or groups in an HL7 v2 message. Returns one JSON match record per structure, in post-order."),
		mcp.WithString("message", mcp.Required(), mcp.Description("ER7 encoded HL7 v2 message; segments separated by CR or LF")),
		mcp.WithString("segments", mcp.Description("Comma separated segment IDs, e.g. PID,OBX")),
		mcp.WithString("groups", mcp.Description("Comma separated group names, e.g. ORDER_OBSERVATION")),
		mcp.WithString("field", mcp.Description("Field reference such as OBX-3.1")),
		mcp.WithString("value", mcp.Description("Value the field must equal; empty means any non-empty value")),
		mcp.WithString("jsonpath", mcp.Description("JSONPath evaluated against each structure")),
		mcp.WithBoolean("first", mcp.Description("Stop after the first match")),
	)
}

// FindStructures is the find_structures tool handler. Caller mistakes are
// reported as tool errors, not protocol errors.
func (h *Handler) FindStructures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q := api.Query{
		Segments: splitList(req.GetString("segments", "")),
		Groups:   splitList(req.GetString("groups", "")),
		Field:    req.GetString("field", ""),
		Value:    req.GetString("value", ""),
		JSONPath: req.GetString("jsonpath", ""),
		First:    req.GetBool("first", false),
	}

	msg, err := hl7.Parse([]byte(raw), hl7.WithProfiles(h.profiles))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse message: %v", err)), nil
	}
	matches, err := finder.Run(msg, q)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query: %v", err)), nil
	}

	recs := finder.Records(matches, msg.ControlID(), "")
	h.logger.Debug("find_structures",
		zap.String("message_id", msg.ControlID()),
		zap.Int("matches", len(recs)))

	out, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("marshal matches: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
