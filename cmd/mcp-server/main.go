// Command mcp-server exposes the taskchat item capabilities as MCP tools
// over streamable HTTP, backed by an in-memory store. It is intended for
// demos and for exercising the MCP client integration against a real
// server.
//
// All tool calls operate on a single shared task list; the owning
// principal is fixed with MCP_PRINCIPAL (default: "mcp").
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/capability/items"
	"github.com/taskchat-dev/taskchat/pkg/storage/memory"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	principal := os.Getenv("MCP_PRINCIPAL")
	if principal == "" {
		principal = "mcp"
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "taskchat-mcp", Version: "v1.0.0"},
		nil,
	)

	store := memory.New()
	for _, p := range items.All(store) {
		if err := addProviderTool(server, p, principal); err != nil {
			slog.Error("registering tool failed", "error", err)
			os.Exit(1)
		}
	}

	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)

	httpMux := http.NewServeMux()
	httpMux.Handle("/mcp", handler)
	httpMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	slog.Info("MCP server starting", "port", port, "principal", principal)
	if err := http.ListenAndServe(":"+port, httpMux); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// addProviderTool bridges one capability provider into an MCP tool. The
// provider's own JSON Schema is advertised; arguments pass through as raw
// JSON. A DomainError becomes a tool result with IsError set, not a
// protocol failure.
func addProviderTool(server *mcp.Server, p capability.Provider, principal string) error {
	def := p.Definition()

	tool := &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
	}
	if len(def.Schema) > 0 {
		var schema jsonschema.Schema
		if err := json.Unmarshal(def.Schema, &schema); err != nil {
			return fmt.Errorf("parsing schema for %s: %w", def.Name, err)
		}
		tool.InputSchema = &schema
	}

	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding arguments: %w", err)
		}

		result, err := p.Execute(ctx, principal, raw)
		if err != nil {
			var domainErr *capability.DomainError
			if errors.As(err, &domainErr) {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{
						&mcp.TextContent{Text: fmt.Sprintf("%s: %s", domainErr.Code, domainErr.Message)},
					},
				}, nil, nil
			}
			return nil, nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(result)},
			},
		}, nil, nil
	})
	return nil
}
