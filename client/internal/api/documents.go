package api

import (
	"context"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	errs "github.com/satishkumarchitti/AI-Chat-Bot/client/internal/errors"
	"github.com/satishkumarchitti/AI-Chat-Bot/client/internal/types"
)

// maxErrorBody caps how much of a streamed error response is buffered.
const maxErrorBody = 64 << 10

// ListDocuments returns the caller's documents, newest first.
func ListDocuments(ctx context.Context, rc *resty.Client, r Retry) ([]types.Document, error) {
	var docs []types.Document
	if err := getJSON(ctx, rc, r, "list documents", "/documents", nil, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return docs, nil
}

// GetDocument fetches one document.
func GetDocument(ctx context.Context, rc *resty.Client, r Retry, id string) (*types.Document, error) {
	var d types.Document
	if err := getJSON(ctx, rc, r, "get document", "/documents/{id}", map[string]string{"id": id}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UploadDocument sends content as the multipart field "file". Each call
// carries a fresh Idempotency-Key.
func UploadDocument(ctx context.Context, rc *resty.Client, filename, contentType string, content io.Reader) (*types.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const op = "upload document"
	resp, err := rc.R().
		SetContext(ctx).
		SetHeader(headerIdempotencyKey, uuid.NewString()).
		SetMultipartField("file", filename, contentType, content).
		Post("/documents/upload")
	if err := check(ctx, op, resp, err); err != nil {
		return nil, err
	}
	var d types.Document
	if err := decode(op, resp, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetExtractedData returns the extraction result of a document. A 404 means
// extraction has not produced data yet.
func GetExtractedData(ctx context.Context, rc *resty.Client, r Retry, id string) (map[string]any, error) {
	var data map[string]any
	if err := getJSON(ctx, rc, r, "get extracted data", "/documents/{id}/extracted-data", map[string]string{"id": id}, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// UpdateExtractedData merges changes into the stored extraction result.
func UpdateExtractedData(ctx context.Context, rc *resty.Client, id string, changes map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := rc.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(changes).
		Put("/documents/{id}/extracted-data")
	return check(ctx, "update extracted data", resp, err)
}

// DeleteDocument removes a document and everything attached to it.
func DeleteDocument(ctx context.Context, rc *resty.Client, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := rc.R().SetContext(ctx).SetPathParam("id", id).Delete("/documents/{id}")
	return check(ctx, "delete document", resp, err)
}

// ExportData streams the extraction result in format ("json" or "csv") to w.
// Exports are not retried: w may already hold part of the body.
func ExportData(ctx context.Context, rc *resty.Client, id, format string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	const op = "export data"
	resp, err := rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetPathParams(map[string]string{"id": id, "format": format}).
		Get("/documents/{id}/export/{format}")
	if resp != nil && resp.RawBody() != nil {
		defer func() { _ = resp.RawBody().Close() }()
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return 0, cerr
		}
		return 0, errs.NewNetworkError(op, err)
	}
	if resp.IsError() {
		body, _ := io.ReadAll(io.LimitReader(resp.RawBody(), maxErrorBody))
		return 0, errs.NewHTTPError(resp.StatusCode(), string(body), op)
	}
	n, err := io.Copy(w, resp.RawBody())
	if err != nil {
		return n, errs.NewNetworkError(op, err)
	}
	return n, nil
}
