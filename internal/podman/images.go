package podman

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ListImages returns the images in local storage. all includes
// intermediate layers.
func (c *Client) ListImages(ctx context.Context, all bool) ([]ImageSummary, error) {
	const op = "list images"
	query := url.Values{}
	query.Set("all", strconv.FormatBool(all))
	resp, err := c.do(ctx, op, http.MethodGet, "/images/json", query, nil)
	if err != nil {
		return nil, err
	}
	var raw []apiImage
	if err := decodeJSON(op, resp, &raw); err != nil {
		return nil, err
	}

	images := make([]ImageSummary, 0, len(raw))
	for _, img := range raw {
		tags := img.RepoTags
		if tags == nil {
			tags = []string{}
		}
		images = append(images, ImageSummary{
			ID:      shortID(img.ID),
			Tags:    tags,
			Size:    img.Size,
			Created: time.Unix(img.Created, 0).UTC().Format(time.RFC3339),
		})
	}
	return images, nil
}

// InspectImage returns the runtime's full description of an image.
func (c *Client) InspectImage(ctx context.Context, name string) (map[string]any, error) {
	const op = "inspect image"
	resp, err := c.do(ctx, op, http.MethodGet, "/images/"+url.PathEscape(name)+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := decodeJSON(op, resp, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (c *Client) lookupImage(ctx context.Context, op, name string) (*apiImageRef, error) {
	resp, err := c.do(ctx, op, http.MethodGet, "/images/"+url.PathEscape(name)+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	var ref apiImageRef
	if err := decodeJSON(op, resp, &ref); err != nil {
		return nil, err
	}
	if ref.RepoTags == nil {
		ref.RepoTags = []string{}
	}
	return &ref, nil
}

// PullImage pulls repository[:tag] from its registry. An empty tag means
// "latest" unless the repository already names a tag or digest.
func (c *Client) PullImage(ctx context.Context, repository, tag string) (*ImageAction, error) {
	const op = "pull image"
	ref := imageReference(repository, tag)

	query := url.Values{}
	query.Set("fromImage", ref)
	resp, err := c.do(ctx, op, http.MethodPost, "/images/create", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := readPullProgress(op, resp.Body); err != nil {
		return nil, err
	}

	img, err := c.lookupImage(ctx, op, ref)
	if err != nil {
		return nil, err
	}
	return &ImageAction{ID: shortID(img.ID), Tags: img.RepoTags, Status: "pulled"}, nil
}

// readPullProgress consumes the progress stream of a pull. The HTTP status
// is 200 even when the pull fails, the failure is in the stream.
func readPullProgress(op string, r io.Reader) error {
	dec := json.NewDecoder(io.LimitReader(r, maxStreamBody))
	for {
		var msg apiPullMessage
		err := dec.Decode(&msg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("malformed pull progress: %w", err)}
		}
		reason := msg.ErrorDetail.Message
		if reason == "" {
			reason = msg.Error
		}
		if reason != "" {
			return &DomainError{Op: op, Status: http.StatusOK, Reason: reason}
		}
	}
}

// RemoveImage deletes an image; force also untags images used by containers.
func (c *Client) RemoveImage(ctx context.Context, name string, force bool) (*ImageAction, error) {
	const op = "remove image"
	img, err := c.lookupImage(ctx, op, name)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("force", strconv.FormatBool(force))
	resp, err := c.do(ctx, op, http.MethodDelete, "/images/"+url.PathEscape(name), query, nil)
	if err != nil {
		return nil, err
	}
	drain(resp)
	return &ImageAction{ID: shortID(img.ID), Tags: img.RepoTags, Status: "removed"}, nil
}

func imageReference(repository, tag string) string {
	if tag == "" {
		tag = "latest"
	}
	if strings.Contains(repository, "@") {
		return repository
	}
	// a colon after the last slash is a tag, before it a registry port
	if i := strings.LastIndex(repository, ":"); i > strings.LastIndex(repository, "/") {
		return repository
	}
	return repository + ":" + tag
}
