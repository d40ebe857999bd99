//go:build e2e

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"podman-mcp/internal/api"
	"podman-mcp/internal/config"
	"podman-mcp/internal/mcp"
	"podman-mcp/internal/podman"
	"podman-mcp/internal/tools"
)

// These tests need a running Podman API service, located through
// CONTAINER_HOST or PODMAN_MCP_RUNTIME_URL:
//
//	podman system service --time=0 unix:///tmp/podman.sock &
//	CONTAINER_HOST=unix:///tmp/podman.sock go test -tags e2e .

const (
	baseURL       = "http://127.0.0.1:9090"
	e2eImage      = "docker.io/library/alpine"
	e2eContainer  = "podman-mcp-e2e"
	e2eCallTimeout = 2 * time.Minute
)

func TestMain(m *testing.M) {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Override port for tests
	cfg.Port = 9090

	rt, err := podman.NewClient(cfg.Runtime.URL, podman.WithTimeout(cfg.Runtime.Timeout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create runtime client: %v\n", err)
		os.Exit(1)
	}
	if err := rt.Ping(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Podman API not reachable at %s: %v\n", cfg.Runtime.URL, err)
		os.Exit(1)
	}

	registry, err := tools.NewRuntimeRegistry(rt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build registry: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	dispatcher := mcp.NewDispatcher(registry, mcp.WithLogger(logger))
	server := api.New(cfg, dispatcher, registry, rt, api.WithLogger(logger), api.WithoutAccessLog())

	go func() {
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
	}()

	// Wait for server to be ready
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				ready = true
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
	}

	if !ready {
		fmt.Fprintf(os.Stderr, "Server failed to start within timeout\n")
		os.Exit(1)
	}

	code := m.Run()

	// Cleanup
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	_, _ = rt.RemoveContainer(ctx, e2eContainer, true)
	_ = server.Shutdown(ctx)
	cancel()

	os.Exit(code)
}

// rpc posts a JSON-RPC body to the MCP endpoint and decodes the response.
func rpc(t *testing.T, body string) map[string]any {
	t.Helper()

	client := &http.Client{Timeout: e2eCallTimeout}
	resp, err := client.Post(baseURL+"/mcp", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST /mcp failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, data)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to parse response: %v (body: %s)", err, data)
	}
	return result
}

// callTool runs tools/call and returns the text of the result and its isError flag.
func callTool(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()

	params, _ := json.Marshal(map[string]any{"name": name, "arguments": args})
	result := rpc(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":`+string(params)+`}`)
	if result["error"] != nil {
		t.Fatalf("%s returned JSON-RPC error: %v", name, result["error"])
	}

	res, ok := result["result"].(map[string]any)
	if !ok {
		t.Fatalf("Expected result object, got %T", result["result"])
	}
	content, _ := res["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("Expected one content block, got %d", len(content))
	}
	block, _ := content[0].(map[string]any)
	text, _ := block["text"].(string)
	isError, _ := res["isError"].(bool)
	return text, isError
}

func TestHealthAndToolsList(t *testing.T) {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	var health map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if health["runtime"] != "ok" {
		t.Fatalf("Expected runtime ok, got %v", health["runtime"])
	}

	result := rpc(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	res, _ := result["result"].(map[string]any)
	list, _ := res["tools"].([]any)
	if len(list) != 17 {
		t.Fatalf("Expected 17 tools, got %d", len(list))
	}
}

func TestSystemInfo(t *testing.T) {
	text, isError := callTool(t, "get_system_info", map[string]any{})
	if isError {
		t.Fatalf("get_system_info failed: %s", text)
	}
	if !strings.Contains(text, "{") {
		t.Fatalf("Expected JSON object, got %s", text)
	}
}

func TestContainerLifecycle(t *testing.T) {
	if text, isError := callTool(t, "pull_image", map[string]any{"repository": e2eImage}); isError {
		t.Fatalf("pull_image failed: %s", text)
	}

	text, isError := callTool(t, "run_container", map[string]any{
		"image":   e2eImage,
		"command": "sleep 300",
		"name":    e2eContainer,
	})
	if isError {
		t.Fatalf("run_container failed: %s", text)
	}
	var run podman.ContainerAction
	if err := json.Unmarshal([]byte(text), &run); err != nil {
		t.Fatalf("decode run result: %v", err)
	}
	if run.Status != "running" || run.Name != e2eContainer {
		t.Fatalf("unexpected run result: %+v", run)
	}

	text, isError = callTool(t, "exec_command", map[string]any{"container_id": e2eContainer, "command": "echo hello"})
	if isError {
		t.Fatalf("exec_command failed: %s", text)
	}
	var exec podman.ExecResult
	if err := json.Unmarshal([]byte(text), &exec); err != nil {
		t.Fatalf("decode exec result: %v", err)
	}
	if exec.ExitCode != 0 || exec.Output != "hello\n" {
		t.Fatalf("unexpected exec result: %+v", exec)
	}

	if text, isError = callTool(t, "start_container", map[string]any{"container_id": e2eContainer}); !isError {
		t.Fatalf("Expected start of a running container to fail, got %s", text)
	}

	for _, step := range []struct {
		tool string
		args map[string]any
	}{
		{"pause_container", map[string]any{"container_id": e2eContainer}},
		{"unpause_container", map[string]any{"container_id": e2eContainer}},
		{"stop_container", map[string]any{"container_id": e2eContainer, "timeout": 1}},
		{"get_container_logs", map[string]any{"container_id": e2eContainer, "tail": "10"}},
		{"remove_container", map[string]any{"container_id": e2eContainer}},
	} {
		if text, isError := callTool(t, step.tool, step.args); isError {
			t.Fatalf("%s failed: %s", step.tool, text)
		}
	}

	text, isError = callTool(t, "inspect_container", map[string]any{"container_id": e2eContainer})
	if !isError || !strings.Contains(text, "no such container") {
		t.Fatalf("Expected not found after removal, got %s", text)
	}
}
