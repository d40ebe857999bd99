package api

func (s *Server) setupRoutes() {
	// Documentation
	s.app.Get("/docs", s.handleDocsHTML)
	s.app.Get("/docs/json", s.handleDocsJSON)

	// Health check
	s.app.Get("/health", s.healthHandler)

	// Tools info
	s.app.Get("/tools", s.toolsHandler)

	// Invocation journal
	s.app.Get("/invocations", s.invocationsHandler)

	// MCP JSON-RPC endpoint
	s.app.Post(s.config.Endpoint, s.mcpHandler)
}
