package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"podman-mcp/internal/podman"
)

func containerID() mcp.ToolOption {
	return mcp.WithString("container_id", mcp.Required(), mcp.Description("Container ID or name"))
}

func containerTools(rt Runtime) []toolDef {
	return []toolDef{
		{
			tool: newTool("list_containers", readOnly("List containers"),
				mcp.WithDescription("List containers. Only running containers unless all is true."),
				mcp.WithBoolean("all", mcp.Description("Include stopped containers"), mcp.DefaultBool(false)),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.ListContainers(ctx, args.Bool("all", false))
			},
		},
		{
			tool: newTool("inspect_container", readOnly("Inspect container"),
				mcp.WithDescription("Return the full runtime description of a container."),
				containerID(),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.InspectContainer(ctx, args.String("container_id", ""))
			},
		},
		{
			tool: newTool("run_container", mutating("Run container", false),
				mcp.WithDescription("Create and start a container. When detach is false, wait for it to exit and return its exit code."),
				mcp.WithString("image", mcp.Required(), mcp.Description("Image to run")),
				mcp.WithString("command", mcp.Description("Command to run, split on whitespace")),
				mcp.WithString("name", mcp.Description("Container name")),
				mcp.WithBoolean("detach", mcp.Description("Return without waiting for the container to exit"), mcp.DefaultBool(true)),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.RunContainer(ctx, podman.RunOptions{
					CreateOptions: createOptions(args),
					Detach:        args.Bool("detach", true),
				})
			},
		},
		{
			tool: newTool("create_container", mutating("Create container", false),
				mcp.WithDescription("Create a container without starting it."),
				mcp.WithString("image", mcp.Required(), mcp.Description("Image to create the container from")),
				mcp.WithString("command", mcp.Description("Command to run, split on whitespace")),
				mcp.WithString("name", mcp.Description("Container name")),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.CreateContainer(ctx, createOptions(args))
			},
		},
		{
			tool: newTool("start_container", mutating("Start container", true),
				mcp.WithDescription("Start a stopped container."),
				containerID(),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.StartContainer(ctx, args.String("container_id", ""))
			},
		},
		{
			tool: newTool("stop_container", mutating("Stop container", true),
				mcp.WithDescription("Stop a running container."),
				containerID(),
				mcp.WithNumber("timeout", mcp.Description("Seconds to wait before killing the container"), mcp.Min(0)),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				var timeout *int
				if n, ok := args.Int("timeout"); ok {
					timeout = &n
				}
				return rt.StopContainer(ctx, args.String("container_id", ""), timeout)
			},
		},
		{
			tool: newTool("restart_container", mutating("Restart container", false),
				mcp.WithDescription("Restart a container."),
				containerID(),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.RestartContainer(ctx, args.String("container_id", ""))
			},
		},
		{
			tool: newTool("remove_container", destructive("Remove container"),
				mcp.WithDescription("Remove a container. force also removes a running container."),
				containerID(),
				mcp.WithBoolean("force", mcp.Description("Remove even if running"), mcp.DefaultBool(false)),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.RemoveContainer(ctx, args.String("container_id", ""), args.Bool("force", false))
			},
		},
		{
			tool: newTool("pause_container", mutating("Pause container", true),
				mcp.WithDescription("Pause all processes in a container."),
				containerID(),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.PauseContainer(ctx, args.String("container_id", ""))
			},
		},
		{
			tool: newTool("unpause_container", mutating("Unpause container", true),
				mcp.WithDescription("Resume a paused container."),
				containerID(),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.UnpauseContainer(ctx, args.String("container_id", ""))
			},
		},
		{
			tool: newTool("get_container_logs", readOnly("Get container logs"),
				mcp.WithDescription("Return the combined stdout and stderr of a container."),
				containerID(),
				mcp.WithString("tail", mcp.Description(`Number of lines from the end, or "all"`), mcp.DefaultString("all")),
				mcp.WithString("since", mcp.Description("Only logs after this unix timestamp, RFC3339 time or duration such as 1h")),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.ContainerLogs(ctx, args.String("container_id", ""), podman.LogOptions{
					Tail:  args.String("tail", "all"),
					Since: args.String("since", ""),
				})
			},
		},
		{
			tool: newTool("exec_command", mutating("Execute command", false),
				mcp.WithDescription("Run a command inside a running container and return its exit code and output."),
				containerID(),
				mcp.WithString("command", mcp.Required(), mcp.Description("Command to run, split on whitespace")),
				mcp.WithString("workdir", mcp.Description("Working directory inside the container")),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.Exec(ctx, args.String("container_id", ""), podman.ExecOptions{
					Command: args.String("command", ""),
					WorkDir: args.String("workdir", ""),
				})
			},
		},
	}
}

func createOptions(args Arguments) podman.CreateOptions {
	return podman.CreateOptions{
		Image:   args.String("image", ""),
		Command: args.String("command", ""),
		Name:    args.String("name", ""),
	}
}
