package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func imageTools(rt Runtime) []toolDef {
	return []toolDef{
		{
			tool: newTool("list_images", readOnly("List images"),
				mcp.WithDescription("List images in local storage."),
				mcp.WithBoolean("all", mcp.Description("Include intermediate images"), mcp.DefaultBool(false)),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.ListImages(ctx, args.Bool("all", false))
			},
		},
		{
			tool: newTool("inspect_image", readOnly("Inspect image"),
				mcp.WithDescription("Return the full runtime description of an image."),
				mcp.WithString("image_id", mcp.Required(), mcp.Description("Image ID or name")),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.InspectImage(ctx, args.String("image_id", ""))
			},
		},
		{
			tool: newTool("pull_image", mutating("Pull image", true),
				mcp.WithDescription("Pull an image from its registry."),
				mcp.WithString("repository", mcp.Required(), mcp.Description("Image repository, e.g. docker.io/library/alpine")),
				mcp.WithString("tag", mcp.Description("Image tag"), mcp.DefaultString("latest")),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.PullImage(ctx, args.String("repository", ""), args.String("tag", ""))
			},
		},
		{
			tool: newTool("remove_image", destructive("Remove image"),
				mcp.WithDescription("Remove an image from local storage."),
				mcp.WithString("image_id", mcp.Required(), mcp.Description("Image ID or name")),
				mcp.WithBoolean("force", mcp.Description("Remove even if used by containers"), mcp.DefaultBool(false)),
			),
			handler: func(ctx context.Context, args Arguments) (any, error) {
				return rt.RemoveImage(ctx, args.String("image_id", ""), args.Bool("force", false))
			},
		},
	}
}

func systemTools(rt Runtime) []toolDef {
	return []toolDef{
		{
			tool: newTool("get_system_info", readOnly("Get system info"),
				mcp.WithDescription("Return container runtime version, host and storage information."),
			),
			handler: func(ctx context.Context, _ Arguments) (any, error) {
				return rt.Info(ctx)
			},
		},
	}
}
