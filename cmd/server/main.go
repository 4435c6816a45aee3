// Command server runs the taskchat conversational task assistant.
//
// Configuration is loaded from a YAML file (discovered or passed with
// -config) layered with TASKCHAT_* environment variables; see the config
// package for the full set of knobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/taskchat-dev/taskchat/pkg/auth"
	"github.com/taskchat-dev/taskchat/pkg/auth/apikey"
	"github.com/taskchat-dev/taskchat/pkg/auth/jwt"
	"github.com/taskchat-dev/taskchat/pkg/auth/noop"
	"github.com/taskchat-dev/taskchat/pkg/capability"
	"github.com/taskchat-dev/taskchat/pkg/capability/items"
	"github.com/taskchat-dev/taskchat/pkg/capability/mcp"
	"github.com/taskchat-dev/taskchat/pkg/config"
	"github.com/taskchat-dev/taskchat/pkg/engine"
	"github.com/taskchat-dev/taskchat/pkg/reasoning/openaicompat"
	"github.com/taskchat-dev/taskchat/pkg/storage"
	"github.com/taskchat-dev/taskchat/pkg/storage/memory"
	"github.com/taskchat-dev/taskchat/pkg/storage/postgres"
	transporthttp "github.com/taskchat-dev/taskchat/pkg/transport/http"
)

// store is the combined persistence surface the server needs.
type store interface {
	storage.ConversationStore
	storage.ItemStore
	io.Closer
}

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	registry := capability.NewRegistry()
	for _, p := range items.All(st) {
		registry.Register(p)
	}

	mcpClients, err := connectMCPServers(ctx, cfg.MCP, registry)
	if err != nil {
		return fmt.Errorf("connecting MCP servers: %w", err)
	}
	defer func() {
		for _, c := range mcpClients {
			c.Close()
		}
	}()

	adapter := openaicompat.NewClient(
		cfg.Reasoning.BackendURL,
		cfg.Reasoning.APIKey,
		cfg.Reasoning.Model,
		cfg.Reasoning.RequestTimeout,
	)

	eng, err := engine.New(adapter, registry, st, engine.Config{
		HistoryWindow:     cfg.Engine.HistoryWindow,
		MaxToolRounds:     cfg.Engine.MaxToolRounds,
		CapabilityTimeout: cfg.Engine.CapabilityTimeout,
		SystemPrompt:      cfg.Engine.SystemPrompt,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.Enabled {
		tiers := make(map[string]auth.TierConfig, len(cfg.Auth.RateLimit.Tiers))
		for name, rpm := range cfg.Auth.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.Auth.RateLimit.DefaultRPM)
	}

	srv := transporthttp.NewServer(eng, st, st,
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithHTTPMiddleware(
			auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints),
		),
	)

	logger.Info("server starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"model", cfg.Reasoning.Model,
		"capabilities", len(registry.Definitions()),
	)
	return srv.ListenAndServe()
}

// openStore creates the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config) (store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MinConns:       cfg.Storage.Postgres.MinConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
	default:
		return memory.New(), nil
	}
}

// connectMCPServers connects to each configured MCP server and registers
// its tools as capability providers. Returned clients stay open for the
// lifetime of the process.
func connectMCPServers(ctx context.Context, cfg config.MCPConfig, registry *capability.Registry) ([]*mcp.Client, error) {
	clients := make([]*mcp.Client, 0, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		client := mcp.NewClient(mcp.ServerConfig{
			Name:      srv.Name,
			Transport: srv.Transport,
			URL:       srv.URL,
			Headers:   srv.Headers,
			Auth: mcp.AuthConfig{
				Type:         srv.Auth.Type,
				TokenURL:     srv.Auth.TokenURL,
				ClientID:     srv.Auth.ClientID,
				ClientSecret: srv.Auth.ClientSecret,
				Scopes:       srv.Auth.Scopes,
			},
		})
		if err := client.Connect(ctx); err != nil {
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("server %s: %w", srv.Name, err)
		}

		providers, err := client.Providers(ctx)
		if err != nil {
			client.Close()
			for _, c := range clients {
				c.Close()
			}
			return nil, fmt.Errorf("server %s: listing tools: %w", srv.Name, err)
		}
		for _, p := range providers {
			registry.Register(p)
		}

		slog.Info("MCP server connected", "name", srv.Name, "tools", len(providers))
		clients = append(clients, client)
	}
	return clients, nil
}

// buildAuthChain assembles the authenticator chain for the configured
// auth type. With type "none" every request is accepted as anonymous.
func buildAuthChain(cfg config.AuthConfig) (*auth.AuthChain, error) {
	switch cfg.Type {
	case "none", "":
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}, nil

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					ServiceTier: k.ServiceTier,
				},
			})
		}
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}, nil

	case "jwt":
		authenticator := jwt.New(jwt.Config{
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			JWKSURL:  cfg.JWT.JWKSURL,
		})
		return &auth.AuthChain{
			Authenticators:  []auth.Authenticator{authenticator},
			DefaultDecision: auth.No,
		}, nil

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}
