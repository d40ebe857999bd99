package api

import (
	"context"
	"encoding/json"
	"mime"
	"time"

	"github.com/gofiber/fiber/v2"

	"podman-mcp/internal/mcp"
	"podman-mcp/internal/storage"
)

const (
	healthTimeout = 2 * time.Second
	maxListLimit  = 1000
)

// mcpHandler feeds the request body to the dispatcher and writes its reply.
func (s *Server) mcpHandler(c *fiber.Ctx) error {
	if !isJSON(c.Get(fiber.HeaderContentType)) {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(&mcp.Response{
			JSONRPC: mcp.JSONRPCVersion,
			ID:      json.RawMessage("null"),
			Error: &mcp.Error{
				Code:    mcp.CodeInvalidRequest,
				Message: "Invalid Request",
				Data:    "Content-Type must be application/json",
			},
		})
	}

	reply, err := s.dispatcher.Handle(c.UserContext(), c.Body())
	if err != nil {
		return err
	}

	// Nothing to answer: the body held notifications only
	if len(reply.Body) == 0 {
		c.Status(fiber.StatusOK)
		return nil
	}

	status := fiber.StatusOK
	if reply.ParseError {
		status = fiber.StatusBadRequest
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(reply.Body)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == fiber.MIMEApplicationJSON
}

// healthHandler reports the server status and whether the runtime answers.
func (s *Server) healthHandler(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	runtime := "ok"
	if err := s.runtime.Ping(ctx); err != nil {
		s.logger.Warn("runtime ping failed", "error", err)
		runtime = "unreachable"
	}
	return c.JSON(fiber.Map{
		"status":  "ok",
		"runtime": runtime,
	})
}

// toolsHandler returns the registered tool descriptors.
func (s *Server) toolsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tools": s.registry.List(),
	})
}

// invocationsHandler lists journal entries, newest first.
func (s *Server) invocationsHandler(c *fiber.Ctx) error {
	if s.journal == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "invocation journal is disabled",
		})
	}

	limit := c.QueryInt("limit", 0)
	if limit < 0 || limit > maxListLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 0 and 1000",
		})
	}

	invocations, err := s.journal.List(c.UserContext(), storage.ListOptions{
		Tool:  c.Query("tool"),
		Limit: limit,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"invocations": invocations,
	})
}
