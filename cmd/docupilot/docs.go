package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/satishkumarchitti/AI-Chat-Bot/store"
	"github.com/satishkumarchitti/AI-Chat-Bot/workspace"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Upload, inspect, edit and export documents",
	}
	cmd.AddCommand(newDocsListCmd())
	cmd.AddCommand(newDocsUploadCmd())
	cmd.AddCommand(newDocsShowCmd())
	cmd.AddCommand(newDocsSetCmd())
	cmd.AddCommand(newDocsDeleteCmd())
	cmd.AddCommand(newDocsExportCmd())
	return cmd
}

func newDocsListCmd() *cobra.Command {
	var search, sortBy, order string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := requireLogin(ws); err != nil {
				return err
			}

			docs := ws.Documents()
			if err := docs.UpdateFilters(store.FilterUpdate{
				Search:    &search,
				SortBy:    (*store.SortKey)(&sortBy),
				SortOrder: (*store.SortOrder)(&order),
			}); err != nil {
				return err
			}
			if err := settle(ctx, ws.FetchDocuments(ctx), nil, func() string { return docs.State().Error }); err != nil {
				return err
			}

			visible := docs.Visible()
			out := cmd.OutOrStdout()
			if len(visible) == 0 {
				fmt.Fprintln(out, "No documents")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tSIZE\tUPLOADED")
			for _, d := range visible {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.Filename, d.FileType, d.Status, humanSize(d.FileSize), d.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Only documents whose name contains this text")
	cmd.Flags().StringVar(&sortBy, "sort", string(store.SortByDate), "Sort by date, name or status")
	cmd.Flags().StringVar(&order, "order", string(store.SortDesc), "Sort order: asc or desc")

	return cmd
}

func newDocsUploadCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image (JPEG, PNG) or PDF for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			if contentType == "" {
				if contentType, err = sniffContentType(f, path); err != nil {
					return err
				}
			}

			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := requireLogin(ws); err != nil {
				return err
			}

			p, err := ws.Upload(ctx, workspace.UploadForm{
				Filename:    filepath.Base(path),
				ContentType: contentType,
				Content:     f,
			})
			if err := settle(ctx, p, err, func() string { return ws.Documents().State().Error }); err != nil {
				return err
			}
			d := ws.Documents().State().Current
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Uploaded %s as document %s (%s)\n", d.Filename, d.ID, d.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type (detected from the file when empty)")
	return cmd
}

// sniffContentType guesses from the extension, then from the first bytes.
func sniffContentType(f *os.File, path string) (string, error) {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		ct, _, _ = strings.Cut(ct, ";")
		return ct, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	ct, _, _ := strings.Cut(http.DetectContentType(head[:n]), ";")
	return ct, nil
}

func newDocsShowCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document and its extracted fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := openDocument(ctx, ws, args[0]); err != nil {
				return err
			}

			st := ws.Documents().State()
			out := cmd.OutOrStdout()
			if asJSON {
				b, _ := json.MarshalIndent(st.Extraction, "", "  ")
				fmt.Fprintln(out, string(b))
				return nil
			}
			printDocument(out, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the extracted data as JSON")
	return cmd
}

func printDocument(out io.Writer, st store.DocumentState) {
	cyan := color.New(color.FgCyan)
	d := st.Current
	fmt.Fprintln(out)
	cyan.Fprintf(out, "  %s\n", d.Filename)
	fmt.Fprintf(out, "  ID:       %s\n", d.ID)
	fmt.Fprintf(out, "  Type:     %s\n", d.FileType)
	fmt.Fprintf(out, "  Status:   %s\n", d.Status)
	fmt.Fprintf(out, "  Size:     %s\n", humanSize(d.FileSize))
	fmt.Fprintf(out, "  Uploaded: %s\n", d.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintln(out)

	if st.Extraction == nil {
		color.New(color.FgYellow).Fprintln(out, "  Extracted data is not available yet.")
		return
	}
	cyan.Fprintln(out, "  Extracted data")
	cyan.Fprintln(out, "  --------------")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, f := range st.Extraction.Flatten() {
		fmt.Fprintf(tw, "  %s\t%v\n", f.Path, f.Value)
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

func newDocsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <id> <field=value>...",
		Short: "Correct extracted fields (nested fields as parent.child)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changes := make(map[string]any, len(args)-1)
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("expected field=value, got %q", kv)
				}
				changes[k] = v
			}

			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := openDocument(ctx, ws, args[0]); err != nil {
				return err
			}
			if ws.Documents().State().Extraction == nil {
				return fmt.Errorf("document %s has no extracted data yet", args[0])
			}

			p, err := ws.SaveFields(ctx, changes)
			if err := settle(ctx, p, err, func() string { return ws.Documents().State().Error }); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Saved %d field(s)\n", len(changes))
			return nil
		},
	}
	return cmd
}

func newDocsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chat history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := requireLogin(ws); err != nil {
				return err
			}

			id := store.DocumentID(args[0])
			if err := settle(ctx, ws.Delete(ctx, id), nil, func() string { return ws.Documents().State().Error }); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %s\n", id)
			return nil
		},
	}
}

func newDocsExportCmd() *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export extracted data as JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, ctx, done, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := openDocument(ctx, ws, args[0]); err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output == "" {
				output = fmt.Sprintf("extracted_data_%s.%s", args[0], strings.ToLower(format))
			}
			var file *os.File
			if output != "-" {
				if file, err = os.Create(output); err != nil {
					return err
				}
				w = file
			}

			p, err := ws.Export(ctx, format, w)
			err = settle(ctx, p, err, func() string { return ws.Documents().State().Error })
			if file != nil {
				if cerr := file.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					_ = os.Remove(output)
				}
			}
			if err != nil {
				return err
			}
			if file != nil {
				log.Debug().Str("file", output).Msg("export written")
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", workspace.FormatJSON, "json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default extracted_data_<id>.<format>)")
	return cmd
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
