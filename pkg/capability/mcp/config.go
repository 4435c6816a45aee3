package mcp

// Config holds the configuration for all MCP server connections.
type Config struct {
	// Servers is the list of MCP server configurations to connect to.
	Servers []ServerConfig
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used for logging.
	Name string `json:"name"`

	// Transport is the transport type to use: "sse" or "streamable-http".
	// If empty, defaults to "streamable-http".
	Transport string `json:"transport"`

	// URL is the MCP server endpoint URL.
	URL string `json:"url"`

	// Headers contains additional HTTP headers to send with requests,
	// typically used for API key authentication.
	Headers map[string]string `json:"headers,omitempty"`

	// Auth configures dynamic authentication for this server.
	Auth AuthConfig `json:"auth,omitempty"`
}

// AuthConfig describes how to authenticate against an MCP server.
type AuthConfig struct {
	// Type selects the auth mechanism. Currently only
	// "oauth_client_credentials" is supported; empty means none.
	Type string `json:"type,omitempty"`

	// TokenURL is the OAuth 2.0 token endpoint.
	TokenURL string `json:"token_url,omitempty"`

	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}
