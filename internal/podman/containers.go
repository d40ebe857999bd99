package podman

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ListContainers returns running containers, or all of them when all is set.
func (c *Client) ListContainers(ctx context.Context, all bool) ([]ContainerSummary, error) {
	const op = "list containers"
	query := url.Values{}
	query.Set("all", strconv.FormatBool(all))

	resp, err := c.do(ctx, op, http.MethodGet, "/containers/json", query, nil)
	if err != nil {
		return nil, err
	}
	var raw []apiContainer
	if err := decodeJSON(op, resp, &raw); err != nil {
		return nil, err
	}

	containers := make([]ContainerSummary, 0, len(raw))
	for _, ct := range raw {
		name := ""
		if len(ct.Names) > 0 {
			name = strings.TrimPrefix(ct.Names[0], "/")
		}
		status := ct.State
		if status == "" {
			status = ct.Status
		}
		containers = append(containers, ContainerSummary{
			ID:     shortID(ct.ID),
			Name:   name,
			Image:  ct.Image,
			Status: status,
		})
	}
	return containers, nil
}

// InspectContainer returns the runtime's full description of a container.
func (c *Client) InspectContainer(ctx context.Context, id string) (map[string]any, error) {
	const op = "inspect container"
	resp, err := c.do(ctx, op, http.MethodGet, "/containers/"+url.PathEscape(id)+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := decodeJSON(op, resp, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (c *Client) lookupContainer(ctx context.Context, op, id string) (*apiContainerRef, error) {
	resp, err := c.do(ctx, op, http.MethodGet, "/containers/"+url.PathEscape(id)+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	var ref apiContainerRef
	if err := decodeJSON(op, resp, &ref); err != nil {
		return nil, err
	}
	if ref.ID == "" {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("malformed response: container %q has no id", id)}
	}
	ref.Name = strings.TrimPrefix(ref.Name, "/")
	return &ref, nil
}

// CreateContainer creates a container without starting it.
func (c *Client) CreateContainer(ctx context.Context, opts CreateOptions) (*ContainerAction, error) {
	const op = "create container"
	id, err := c.create(ctx, op, opts)
	if err != nil {
		return nil, err
	}
	ref, err := c.lookupContainer(ctx, op, id)
	if err != nil {
		return nil, err
	}
	return &ContainerAction{ID: shortID(ref.ID), Name: ref.Name, Image: opts.Image, Status: "created"}, nil
}

func (c *Client) create(ctx context.Context, op string, opts CreateOptions) (string, error) {
	query := url.Values{}
	if opts.Name != "" {
		query.Set("name", opts.Name)
	}
	body := map[string]any{"Image": opts.Image}
	if argv := splitCommand(opts.Command); len(argv) > 0 {
		body["Cmd"] = argv
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/containers/create", query, body)
	if err != nil {
		return "", err
	}
	var created apiIDResponse
	if err := decodeJSON(op, resp, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &TransportError{Op: op, Err: fmt.Errorf("malformed response: no container id")}
	}
	return created.ID, nil
}

// RunContainer creates and starts a container. Unless detached it waits for
// the container to exit and reports the exit code.
func (c *Client) RunContainer(ctx context.Context, opts RunOptions) (*ContainerAction, error) {
	const op = "run container"
	id, err := c.create(ctx, op, opts.CreateOptions)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/containers/"+url.PathEscape(id)+"/start", nil, nil)
	if err != nil {
		return nil, err
	}
	drain(resp)

	ref, err := c.lookupContainer(ctx, op, id)
	if err != nil {
		return nil, err
	}
	action := &ContainerAction{ID: shortID(ref.ID), Name: ref.Name, Image: opts.Image, Status: "running"}
	if opts.Detach {
		return action, nil
	}

	resp, err = c.do(ctx, op, http.MethodPost, "/containers/"+url.PathEscape(id)+"/wait", nil, nil)
	if err != nil {
		return nil, err
	}
	var wait apiWaitResponse
	if err := decodeJSON(op, resp, &wait); err != nil {
		return nil, err
	}
	action.Status = "exited"
	action.ExitCode = &wait.StatusCode
	return action, nil
}

// StartContainer starts a stopped container.
func (c *Client) StartContainer(ctx context.Context, id string) (*ContainerAction, error) {
	return c.lifecycle(ctx, "start container", id, "start", nil, "started", "running")
}

// StopContainer stops a running container. A nil timeout leaves the grace
// period to the runtime.
func (c *Client) StopContainer(ctx context.Context, id string, timeout *int) (*ContainerAction, error) {
	var query url.Values
	if timeout != nil {
		query = url.Values{"t": []string{strconv.Itoa(*timeout)}}
	}
	return c.lifecycle(ctx, "stop container", id, "stop", query, "stopped", "stopped")
}

// RestartContainer restarts a container.
func (c *Client) RestartContainer(ctx context.Context, id string) (*ContainerAction, error) {
	return c.lifecycle(ctx, "restart container", id, "restart", nil, "restarted", "")
}

// PauseContainer pauses a running container.
func (c *Client) PauseContainer(ctx context.Context, id string) (*ContainerAction, error) {
	return c.lifecycle(ctx, "pause container", id, "pause", nil, "paused", "")
}

// UnpauseContainer resumes a paused container.
func (c *Client) UnpauseContainer(ctx context.Context, id string) (*ContainerAction, error) {
	return c.lifecycle(ctx, "unpause container", id, "unpause", nil, "unpaused", "")
}

// lifecycle resolves the container, posts the verb and reports status. A
// 304 answer means the container already is in the target state.
func (c *Client) lifecycle(ctx context.Context, op, id, verb string, query url.Values, status, already string) (*ContainerAction, error) {
	ref, err := c.lookupContainer(ctx, op, id)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, op, http.MethodPost, "/containers/"+url.PathEscape(ref.ID)+"/"+verb, query, nil)
	if err != nil {
		return nil, err
	}
	drain(resp)

	if resp.StatusCode == http.StatusNotModified {
		if already == "" {
			already = status
		}
		return nil, &DomainError{
			Op:     op,
			Status: resp.StatusCode,
			Reason: fmt.Sprintf("container %s is already %s", ref.Name, already),
		}
	}
	return &ContainerAction{ID: shortID(ref.ID), Name: ref.Name, Status: status}, nil
}

// RemoveContainer deletes a container; force also removes a running one.
func (c *Client) RemoveContainer(ctx context.Context, id string, force bool) (*ContainerAction, error) {
	const op = "remove container"
	ref, err := c.lookupContainer(ctx, op, id)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("force", strconv.FormatBool(force))
	resp, err := c.do(ctx, op, http.MethodDelete, "/containers/"+url.PathEscape(ref.ID), query, nil)
	if err != nil {
		return nil, err
	}
	drain(resp)
	return &ContainerAction{ID: shortID(ref.ID), Name: ref.Name, Status: "removed"}, nil
}

// ContainerLogs returns a snapshot of a container's stdout and stderr.
func (c *Client) ContainerLogs(ctx context.Context, id string, opts LogOptions) (*Logs, error) {
	const op = "container logs"
	since, err := sinceParam(opts.Since, time.Now())
	if err != nil {
		return nil, &DomainError{Op: op, Status: http.StatusBadRequest, Reason: err.Error()}
	}

	ref, err := c.lookupContainer(ctx, op, id)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("stdout", "true")
	query.Set("stderr", "true")
	tail := opts.Tail
	if tail == "" {
		tail = "all"
	}
	query.Set("tail", tail)
	if since != "" {
		query.Set("since", since)
	}

	resp, err := c.do(ctx, op, http.MethodGet, "/containers/"+url.PathEscape(ref.ID)+"/logs", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	text, err := readStream(resp.Body, ref.Config.Tty)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read logs: %w", err)}
	}
	return &Logs{Logs: text}, nil
}

// Exec runs a command inside a running container and collects its output.
func (c *Client) Exec(ctx context.Context, id string, opts ExecOptions) (*ExecResult, error) {
	const op = "exec command"
	argv := splitCommand(opts.Command)
	if len(argv) == 0 {
		return nil, &DomainError{Op: op, Status: http.StatusBadRequest, Reason: "command is empty"}
	}

	ref, err := c.lookupContainer(ctx, op, id)
	if err != nil {
		return nil, err
	}

	create := map[string]any{
		"AttachStdout": true,
		"AttachStderr": true,
		"Cmd":          argv,
	}
	if opts.WorkDir != "" {
		create["WorkingDir"] = opts.WorkDir
	}
	resp, err := c.do(ctx, op, http.MethodPost, "/containers/"+url.PathEscape(ref.ID)+"/exec", nil, create)
	if err != nil {
		return nil, err
	}
	var exec apiIDResponse
	if err := decodeJSON(op, resp, &exec); err != nil {
		return nil, err
	}
	if exec.ID == "" {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("malformed response: no exec id")}
	}

	resp, err = c.do(ctx, op, http.MethodPost, "/exec/"+url.PathEscape(exec.ID)+"/start", nil,
		map[string]any{"Detach": false, "Tty": false})
	if err != nil {
		return nil, err
	}
	output, err := readStream(resp.Body, false)
	resp.Body.Close()
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read exec output: %w", err)}
	}

	resp, err = c.do(ctx, op, http.MethodGet, "/exec/"+url.PathEscape(exec.ID)+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	var inspect apiExecInspect
	if err := decodeJSON(op, resp, &inspect); err != nil {
		return nil, err
	}
	return &ExecResult{ExitCode: inspect.ExitCode, Output: output}, nil
}
