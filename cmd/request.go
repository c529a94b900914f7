package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/bnema/sessionkit/internal/adapters/render/format"
	"github.com/bnema/sessionkit/internal/adapters/render/tableview"
	"github.com/bnema/sessionkit/internal/table"
	"github.com/spf13/cobra"
)

const outputAuto = "auto"

var errTableNeedsRows = errors.New("table output needs a JSON array of objects")

type requestOptions struct {
	data     string
	output   string
	sortKey  string
	desc     bool
	page     int
	pageSize int
}

type requestVerb struct {
	method  string
	short   string
	hasBody bool
}

var requestVerbs = []requestVerb{
	{method: http.MethodGet, short: "Send an authenticated GET request"},
	{method: http.MethodPost, short: "Send an authenticated POST request", hasBody: true},
	{method: http.MethodPut, short: "Send an authenticated PUT request", hasBody: true},
	{method: http.MethodPatch, short: "Send an authenticated PATCH request", hasBody: true},
	{method: http.MethodDelete, short: "Send an authenticated DELETE request"},
}

// newRequestCmds builds one command per HTTP verb; all of them go through
// the gateway and print the decoded response.
func newRequestCmds(app *app) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(requestVerbs))
	for _, verb := range requestVerbs {
		cmds = append(cmds, newRequestCmd(app, verb))
	}
	return cmds
}

func newRequestCmd(app *app, verb requestVerb) *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   strings.ToLower(verb.method) + " PATH",
		Short: verb.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := requestBody(opts.data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			result, err := send(cmd.Context(), app, verb.method, args[0], body)
			if err != nil {
				return fmt.Errorf("%s %s: %w", verb.method, args[0], err)
			}
			return writeResult(cmd.OutOrStdout(), result, opts)
		},
	}

	flags := cmd.Flags()
	if verb.hasBody {
		flags.StringVarP(&opts.data, "data", "d", "", "JSON body, @file to read a file or - for stdin")
	}
	flags.StringVarP(&opts.output, "output", "o", outputAuto, "Output format: auto, json, yaml, toml, table")
	flags.StringVar(&opts.sortKey, "sort", "", "Table: sort rows by this key")
	flags.BoolVar(&opts.desc, "desc", false, "Table: sort descending")
	flags.IntVar(&opts.page, "page", 1, "Table: page to show")
	flags.IntVar(&opts.pageSize, "page-size", 20, "Table: rows per page, 0 shows every row")

	return cmd
}

func send(ctx context.Context, app *app, method, path string, body any) (any, error) {
	switch method {
	case http.MethodGet:
		return app.client.Get(ctx, path)
	case http.MethodPost:
		return app.client.Post(ctx, path, body)
	case http.MethodPut:
		return app.client.Put(ctx, path, body)
	case http.MethodPatch:
		return app.client.Patch(ctx, path, body)
	case http.MethodDelete:
		return app.client.Delete(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
}

// requestBody decodes --data. An empty flag means no body.
func requestBody(data string, stdin io.Reader) (any, error) {
	var raw []byte
	switch {
	case data == "":
		return nil, nil
	case data == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read body from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(data, "@"))
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		raw = b
	default:
		raw = []byte(data)
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("--data is not valid JSON: %w", err)
	}
	return body, nil
}

func writeResult(w io.Writer, result any, opts *requestOptions) error {
	output := strings.ToLower(strings.TrimSpace(opts.output))
	rows, isList := table.Rows(result)

	switch output {
	case outputAuto:
		if result == nil {
			return nil
		}
		if isList && len(rows) > 0 {
			return writeTable(w, rows, opts)
		}
		return format.Encode(w, format.JSON, result)
	case format.Table:
		if !isList {
			return errTableNeedsRows
		}
		return writeTable(w, rows, opts)
	default:
		return format.Encode(w, output, result)
	}
}

func writeTable(w io.Writer, rows []table.Row, opts *requestOptions) error {
	sort := table.SortState{}
	if opts.sortKey != "" {
		sort = table.SortState{Key: opts.sortKey, Direction: table.Asc}
		if opts.desc {
			sort.Direction = table.Desc
		}
	}

	page := table.Paginate(table.Sort(rows, sort), opts.page, opts.pageSize)
	_, err := fmt.Fprintln(w, tableview.Render(page, table.Columns(rows), sort))
	return err
}
