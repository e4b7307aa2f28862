package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "studentreminder"
	serverVersion = "1.0.0"
)

// Server exposes the notification API as MCP tools.
type Server struct {
	mcpServer  *server.MCPServer
	apiURL     string
	apiToken   string
	httpClient *http.Client
}

func NewServer(apiURL, apiToken string) *Server {
	s := &Server{
		apiURL:   strings.TrimRight(apiURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("schedule_reminder",
			mcp.WithDescription("Schedule (or replace) the notification for a reminder at its due date and time"),
			mcp.WithString("id", mcp.Description("Reminder ID; generated when empty")),
			mcp.WithString("reminder_type", mcp.Required(), mcp.Description("CAT, EXAMS or PRESENTATION")),
			mcp.WithString("presentation_type", mcp.Description("Presentation sub-type, only for PRESENTATION")),
			mcp.WithString("due_date", mcp.Required(), mcp.Description("Due date as YYYY-MM-DD")),
			mcp.WithString("due_time", mcp.Required(), mcp.Description("Due time as \"hh:mm AM\" or \"HH:mm\"")),
		),
		s.handleSchedule,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("cancel_reminder",
			mcp.WithDescription("Cancel the scheduled notification of a reminder"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleCancel,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_notification",
			mcp.WithDescription("Get the notification scheduled for a reminder"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleGet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_notifications",
			mcp.WithDescription("List every reminder that has a scheduled notification"),
		),
		s.handleList,
	)
}

func (s *Server) handleSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{
		"reminder_type":     req.GetString("reminder_type", ""),
		"presentation_type": req.GetString("presentation_type", ""),
		"due_date":          req.GetString("due_date", ""),
		"due_time":          req.GetString("due_time", ""),
	}
	if body["reminder_type"] == "" || body["due_date"] == "" || body["due_time"] == "" {
		return mcp.NewToolResultError("reminder_type, due_date and due_time are required"), nil
	}

	if id := req.GetString("id", ""); id != "" {
		return s.call(ctx, http.MethodPut, "/api/notifications/"+url.PathEscape(id), body)
	}
	return s.call(ctx, http.MethodPost, "/api/notifications", body)
}

func (s *Server) handleCancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	return s.call(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil)
}

func (s *Server) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	return s.call(ctx, http.MethodGet, "/api/notifications/"+url.PathEscape(id), nil)
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.call(ctx, http.MethodGet, "/api/notifications", nil)
}

// call performs the API request and turns the response envelope into a tool
// result. API failures are tool errors, not protocol errors.
func (s *Server) call(ctx context.Context, method, path string, body interface{}) (*mcp.CallToolResult, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal request: %v", err)), nil
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.apiURL+path, reqBody)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create request: %v", err)), nil
	}
	if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return mcp.NewToolResultText("done"), nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read response: %v", err)), nil
	}

	var apiResp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return mcp.NewToolResultError(string(respBody)), nil
		}
		return mcp.NewToolResultText(string(respBody)), nil
	}

	if !apiResp.Success {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %s", apiResp.Error)), nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, apiResp.Data, "", "  "); err != nil {
		return mcp.NewToolResultText(string(apiResp.Data)), nil
	}
	return mcp.NewToolResultText(pretty.String()), nil
}
