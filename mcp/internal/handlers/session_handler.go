package handlers

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

// SessionHandler exposes login, logout and whoami.
type SessionHandler struct {
	*Bridge
}

func NewSessionHandler(b *Bridge) *SessionHandler {
	return &SessionHandler{Bridge: b}
}

// RegisterTools registers the session tools.
func (sh *SessionHandler) RegisterTools(s *server.MCPServer) error {
	loginTool := mcp.NewTool("login",
		mcp.WithDescription("Sign in to docupilot. The session is remembered across restarts."),
		mcp.WithString("email", mcp.Required(), mcp.Description("Account email")),
		mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
	)
	s.AddTool(loginTool, sh.handleLogin)

	logoutTool := mcp.NewTool("logout",
		mcp.WithDescription("Sign out and forget the stored session"),
	)
	s.AddTool(logoutTool, sh.handleLogout)

	whoamiTool := mcp.NewTool("whoami",
		mcp.WithDescription("Show the signed-in account, if any"),
	)
	s.AddTool(whoamiTool, sh.handleWhoami)
	return nil
}

func (sh *SessionHandler) handleLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	email, err := req.RequireString("email")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	password, err := req.RequireString("password")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	err = sh.call(ctx, func(ctx context.Context) error {
		p, err := sh.ws.Login(ctx, workspace.LoginForm{Email: email, Password: password})
		return settle(ctx, p, err, func() string { return sh.ws.Session().State().Error })
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return sh.handleWhoami(ctx, req)
}

func (sh *SessionHandler) handleLogout(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	err := sh.call(ctx, func(ctx context.Context) error {
		return sh.ws.Logout(ctx).Wait(ctx)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Logged out"), nil
}

func (sh *SessionHandler) handleWhoami(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := sh.ws.Session().State()
	if !st.IsAuthenticated() || st.User == nil {
		return jsonResult(map[string]any{"authenticated": false}), nil
	}
	return jsonResult(map[string]any{
		"authenticated": true,
		"id":            st.User.ID,
		"name":          st.User.Name,
		"email":         st.User.Email,
	}), nil
}
