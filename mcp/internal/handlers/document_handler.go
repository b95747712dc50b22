package handlers

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/satishkumarchitti/AI-Chat-Bot/store"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

// DocumentHandler exposes the document tools.
type DocumentHandler struct {
	*Bridge
}

func NewDocumentHandler(b *Bridge) *DocumentHandler {
	return &DocumentHandler{Bridge: b}
}

// RegisterTools registers list_documents, get_extraction, update_fields,
// export_document and delete_document.
func (dh *DocumentHandler) RegisterTools(s *server.MCPServer) error {
	listTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List the signed-in user's documents with their processing status"),
		mcp.WithString("search", mcp.Description("Only documents whose file name contains this text (case-insensitive)")),
		mcp.WithString("sort_by", mcp.Description("date (default), name or status")),
		mcp.WithString("sort_order", mcp.Description("desc (default) or asc")),
	)
	s.AddTool(listTool, dh.handleList)

	extractionTool := mcp.NewTool("get_extraction",
		mcp.WithDescription("Return the document metadata and the data extracted from it. extraction is null while the document is still being processed."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
	)
	s.AddTool(extractionTool, dh.handleGetExtraction)

	updateTool := mcp.NewTool("update_fields",
		mcp.WithDescription("Correct extracted fields. Keys are field paths; nested fields use parent.child."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Map of field path to new value")),
	)
	s.AddTool(updateTool, dh.handleUpdateFields)

	exportTool := mcp.NewTool("export_document",
		mcp.WithDescription("Export the extracted data as JSON or CSV text"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
		mcp.WithString("format", mcp.Description("json (default) or csv")),
	)
	s.AddTool(exportTool, dh.handleExport)

	deleteTool := mcp.NewTool("delete_document",
		mcp.WithDescription("Delete a document and its chat history"),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("The document id")),
	)
	s.AddTool(deleteTool, dh.handleDelete)
	return nil
}

func optionalString(req mcp.CallToolRequest, name string) (string, bool) {
	v, ok := req.GetArguments()[name].(string)
	return v, ok && v != ""
}

func (dh *DocumentHandler) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var u store.FilterUpdate
	search, _ := optionalString(req, "search")
	u.Search = &search
	if v, ok := optionalString(req, "sort_by"); ok {
		k := store.SortKey(v)
		u.SortBy = &k
	}
	if v, ok := optionalString(req, "sort_order"); ok {
		o := store.SortOrder(v)
		u.SortOrder = &o
	}

	var docs []store.Document
	err := dh.call(ctx, func(ctx context.Context) error {
		if err := dh.requireLogin(); err != nil {
			return err
		}
		if err := dh.ws.Documents().UpdateFilters(u); err != nil {
			return err
		}
		if err := settle(ctx, dh.ws.FetchDocuments(ctx), nil, func() string { return dh.ws.Documents().State().Error }); err != nil {
			return err
		}
		docs = dh.ws.Documents().Visible()
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	views := make([]documentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, viewDocument(d))
	}
	return jsonResult(map[string]any{"documents": views, "count": len(views)}), nil
}

func (dh *DocumentHandler) handleGetExtraction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var st store.DocumentState
	err = dh.call(ctx, func(ctx context.Context) error {
		if err := dh.open(ctx, id); err != nil {
			return err
		}
		st = dh.ws.Documents().State()
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"document":   viewDocument(*st.Current),
		"extraction": st.Extraction,
	}), nil
}

func (dh *DocumentHandler) handleUpdateFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, ok := req.GetArguments()["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return mcp.NewToolResultError("fields must be a non-empty object"), nil
	}

	var updated store.ExtractionResult
	err = dh.call(ctx, func(ctx context.Context) error {
		if err := dh.open(ctx, id); err != nil {
			return err
		}
		if dh.ws.Documents().State().Extraction == nil {
			return fmt.Errorf("document %s has no extracted data yet", id)
		}
		p, err := dh.ws.SaveFields(ctx, fields)
		if err := settle(ctx, p, err, func() string { return dh.ws.Documents().State().Error }); err != nil {
			return err
		}
		updated = dh.ws.Documents().State().Extraction
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"extraction": updated}), nil
}

func (dh *DocumentHandler) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, ok := optionalString(req, "format")
	if !ok {
		format = workspace.FormatJSON
	}

	var buf bytes.Buffer
	err = dh.call(ctx, func(ctx context.Context) error {
		if err := dh.open(ctx, id); err != nil {
			return err
		}
		p, err := dh.ws.Export(ctx, format, &buf)
		return settle(ctx, p, err, func() string { return dh.ws.Documents().State().Error })
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (dh *DocumentHandler) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	err = dh.call(ctx, func(ctx context.Context) error {
		if err := dh.requireLogin(); err != nil {
			return err
		}
		p := dh.ws.Delete(ctx, store.DocumentID(id))
		return settle(ctx, p, nil, func() string { return dh.ws.Documents().State().Error })
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted document %s", id)), nil
}
