package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"podman-mcp/internal/podman"
)

// Runtime is the set of container runtime operations backing the tools.
// *podman.Client implements it.
type Runtime interface {
	ListContainers(ctx context.Context, all bool) ([]podman.ContainerSummary, error)
	InspectContainer(ctx context.Context, id string) (map[string]any, error)
	RunContainer(ctx context.Context, opts podman.RunOptions) (*podman.ContainerAction, error)
	CreateContainer(ctx context.Context, opts podman.CreateOptions) (*podman.ContainerAction, error)
	StartContainer(ctx context.Context, id string) (*podman.ContainerAction, error)
	StopContainer(ctx context.Context, id string, timeout *int) (*podman.ContainerAction, error)
	RestartContainer(ctx context.Context, id string) (*podman.ContainerAction, error)
	RemoveContainer(ctx context.Context, id string, force bool) (*podman.ContainerAction, error)
	PauseContainer(ctx context.Context, id string) (*podman.ContainerAction, error)
	UnpauseContainer(ctx context.Context, id string) (*podman.ContainerAction, error)
	ContainerLogs(ctx context.Context, id string, opts podman.LogOptions) (*podman.Logs, error)
	Exec(ctx context.Context, id string, opts podman.ExecOptions) (*podman.ExecResult, error)

	ListImages(ctx context.Context, all bool) ([]podman.ImageSummary, error)
	InspectImage(ctx context.Context, name string) (map[string]any, error)
	PullImage(ctx context.Context, repository, tag string) (*podman.ImageAction, error)
	RemoveImage(ctx context.Context, name string, force bool) (*podman.ImageAction, error)

	Info(ctx context.Context) (map[string]any, error)
}

var _ Runtime = (*podman.Client)(nil)

// NewRuntimeRegistry builds the registry holding the full container tool set.
func NewRuntimeRegistry(rt Runtime) (*Registry, error) {
	r := NewRegistry()
	if err := RegisterRuntimeTools(r, rt); err != nil {
		return nil, err
	}
	return r, nil
}

// RegisterRuntimeTools registers the container, image and system tools.
func RegisterRuntimeTools(r *Registry, rt Runtime) error {
	for _, def := range runtimeTools(rt) {
		if err := r.Register(def.tool, def.handler); err != nil {
			return fmt.Errorf("register runtime tools: %w", err)
		}
	}
	return nil
}

type toolDef struct {
	tool    mcp.Tool
	handler Handler
}

func runtimeTools(rt Runtime) []toolDef {
	defs := containerTools(rt)
	defs = append(defs, imageTools(rt)...)
	defs = append(defs, systemTools(rt)...)
	return defs
}

func readOnly(title string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	}
}

func mutating(title string, idempotent bool) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(idempotent),
	}
}

func destructive(title string) []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
	}
}

func newTool(name string, annotations []mcp.ToolOption, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append(opts, annotations...)...)
}
