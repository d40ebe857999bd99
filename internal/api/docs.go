package api

import (
	"html"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APISpec describes the HTTP surface served by podman-mcp.
type APISpec struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Endpoints   []Endpoint `json:"endpoints"`
}

// Endpoint represents an API endpoint specification.
type Endpoint struct {
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Summary     string              `json:"summary"`
	Description string              `json:"description"`
	Request     *RequestSpec        `json:"request,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// RequestSpec represents request body specification.
type RequestSpec struct {
	ContentType string           `json:"content_type"`
	Schema      map[string]Field `json:"schema"`
	Example     any              `json:"example,omitempty"`
}

// Response represents a response specification.
type Response struct {
	Description string `json:"description"`
	Example     any    `json:"example,omitempty"`
}

// Field represents a schema field.
type Field struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// apiSpec builds the description for the configured MCP endpoint.
func apiSpec(endpoint string) APISpec {
	return APISpec{
		Title:       "podman-mcp",
		Description: "MCP server exposing Podman container and image operations as JSON-RPC 2.0 tools.",
		Version:     "1.0.0",
		Endpoints: []Endpoint{
			{
				Method:      "POST",
				Path:        endpoint,
				Summary:     "MCP JSON-RPC Endpoint",
				Description: "Accepts a JSON-RPC 2.0 request or batch. Methods: initialize, ping, tools/list, tools/call. Notifications get no response; a body of notifications only returns an empty 200.",
				Request: &RequestSpec{
					ContentType: "application/json",
					Schema: map[string]Field{
						"jsonrpc": {Type: "string", Description: "Must be \"2.0\"", Required: true},
						"id":      {Type: "string|number|null", Description: "Request ID, absent for notifications", Required: false},
						"method":  {Type: "string", Description: "Method name", Required: true},
						"params":  {Type: "object", Description: "Method parameters", Required: false},
					},
					Example: map[string]any{
						"jsonrpc": "2.0",
						"id":      1,
						"method":  "tools/call",
						"params": map[string]any{
							"name":      "list_containers",
							"arguments": map[string]any{"all": true},
						},
					},
				},
				Responses: map[string]Response{
					"200": {
						Description: "JSON-RPC response or batch of responses",
						Example: map[string]any{
							"jsonrpc": "2.0",
							"id":      1,
							"result": map[string]any{
								"content": []map[string]string{{"type": "text", "text": "[]"}},
								"isError": false,
							},
						},
					},
					"400": {
						Description: "Body is not valid JSON",
						Example: map[string]any{
							"jsonrpc": "2.0",
							"id":      nil,
							"error":   map[string]any{"code": -32700, "message": "Parse error"},
						},
					},
					"415": {
						Description: "Content-Type is not application/json",
					},
				},
			},
			{
				Method:      "GET",
				Path:        "/health",
				Summary:     "Health Check",
				Description: "Returns the server status and whether the container runtime answers a ping.",
				Responses: map[string]Response{
					"200": {
						Description: "Server is up",
						Example:     map[string]string{"status": "ok", "runtime": "ok"},
					},
				},
			},
			{
				Method:      "GET",
				Path:        "/tools",
				Summary:     "List Tools",
				Description: "Returns the registered tool descriptors, the same list tools/list returns.",
				Responses: map[string]Response{
					"200": {
						Description: "Tool descriptors",
						Example:     map[string]any{"tools": []any{}},
					},
				},
			},
			{
				Method:      "GET",
				Path:        "/invocations",
				Summary:     "List Invocations",
				Description: "Returns recorded tool calls, newest first. Query parameters: tool (filter by name), limit (default 50).",
				Responses: map[string]Response{
					"200": {
						Description: "Journal entries",
						Example: map[string]any{
							"invocations": []map[string]any{{
								"id":          "uuid",
								"tool":        "list_containers",
								"arguments":   map[string]any{},
								"outcome":     "ok",
								"duration_ms": 12,
								"created_at":  "2025-01-01T00:00:00Z",
							}},
						},
					},
					"404": {
						Description: "Journal disabled",
						Example:     map[string]string{"error": "invocation journal is disabled"},
					},
				},
			},
		},
	}
}

// handleDocsJSON returns the API specification as JSON.
func (s *Server) handleDocsJSON(c *fiber.Ctx) error {
	return c.JSON(apiSpec(s.config.Endpoint))
}

// handleDocsHTML returns an HTML documentation page.
func (s *Server) handleDocsHTML(c *fiber.Ctx) error {
	spec := apiSpec(s.config.Endpoint)

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>` + html.EscapeString(spec.Title) + ` - API Documentation</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; background: #1a1a2e; color: #eee; line-height: 1.6; }
        .container { max-width: 1100px; margin: 0 auto; padding: 20px; }
        .endpoint { background: #252540; border-radius: 10px; margin-bottom: 20px; padding: 15px 20px; border: 1px solid #3a3a5c; }
        .method { padding: 4px 10px; border-radius: 5px; font-weight: bold; }
        .method.GET { background: #61affe; }
        .method.POST { background: #49cc90; }
        .path { font-family: monospace; font-size: 1.1em; }
        pre { background: #1e1e3f; padding: 12px; border-radius: 8px; overflow-x: auto; }
    </style>
</head>
<body>
    <div class="container">
        <h1>` + html.EscapeString(spec.Title) + ` <small>v` + spec.Version + `</small></h1>
        <p>` + html.EscapeString(spec.Description) + `</p>
`)

	for _, ep := range spec.Endpoints {
		b.WriteString(`        <div class="endpoint">
            <span class="method ` + ep.Method + `">` + ep.Method + `</span>
            <span class="path">` + html.EscapeString(ep.Path) + `</span> - ` + html.EscapeString(ep.Summary) + `
            <p>` + html.EscapeString(ep.Description) + `</p>
`)
		if ep.Request != nil {
			b.WriteString("            <ul>\n")
			for _, name := range sortedKeys(ep.Request.Schema) {
				field := ep.Request.Schema[name]
				required := ""
				if field.Required {
					required = " (required)"
				}
				b.WriteString("                <li><code>" + name + "</code> " + html.EscapeString(field.Type) + required + ": " + html.EscapeString(field.Description) + "</li>\n")
			}
			b.WriteString("            </ul>\n")
		}
		for _, code := range sortedKeys(ep.Responses) {
			b.WriteString("            <p><strong>" + code + "</strong> " + html.EscapeString(ep.Responses[code].Description) + "</p>\n")
		}
		b.WriteString("        </div>\n")
	}

	b.WriteString("    </div>\n</body>\n</html>\n")

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(b.String())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
