package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satishkumarchitti/AI-Chat-Bot/store"
)

// ChatHandler exposes document Q&A.
type ChatHandler struct {
	*Bridge
}

func NewChatHandler(b *Bridge) *ChatHandler {
	return &ChatHandler{Bridge: b}
}

// RegisterTools registers ask_document, get_chat_history and
// clear_chat_history.
func (ch *ChatHandler) RegisterTools(s *server.MCPServer) error {
	askTool := mcp.NewTool("ask_document",
		mcp.WithDescription("Ask the docupilot assistant a question about a document's extracted data. The exchange is added to the document's chat history."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to ask")),
	)
	s.AddTool(askTool, ch.handleAsk)

	historyTool := mcp.NewTool("get_chat_history",
		mcp.WithDescription("Return the conversation about a document, oldest first"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
	)
	s.AddTool(historyTool, ch.handleHistory)

	clearTool := mcp.NewTool("clear_chat_history",
		mcp.WithDescription("Delete the conversation about a document"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
	)
	s.AddTool(clearTool, ch.handleClear)
	return nil
}

func (ch *ChatHandler) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var answer string
	err = ch.call(ctx, func(ctx context.Context) error {
		if err := ch.open(ctx, id); err != nil {
			return err
		}
		conv := ch.ws.Conversations()
		p, err := ch.ws.Send(ctx, question)
		if err := settle(ctx, p, err, func() string { return conv.State().Error }); err != nil {
			return err
		}
		log := conv.Log(store.DocumentID(id))
		if n := len(log); n > 0 && log[n-1].Sender == store.SenderAssistant {
			answer = log[n-1].Text
		}
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (ch *ChatHandler) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var entries []store.Entry
	err = ch.call(ctx, func(ctx context.Context) error {
		if err := ch.requireLogin(); err != nil {
			return err
		}
		conv := ch.ws.Conversations()
		if err := settle(ctx, ch.ws.LoadHistory(ctx, store.DocumentID(id)), nil, func() string { return conv.State().Error }); err != nil {
			return err
		}
		entries = conv.Log(store.DocumentID(id))
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"messages": viewEntries(entries), "count": len(entries)}), nil
}

func (ch *ChatHandler) handleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	err = ch.call(ctx, func(ctx context.Context) error {
		if err := ch.requireLogin(); err != nil {
			return err
		}
		p := ch.ws.ClearHistory(ctx, store.DocumentID(id))
		return settle(ctx, p, nil, func() string { return ch.ws.Conversations().State().Error })
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Cleared chat history for document %s", id)), nil
}
