package podman

// ContainerSummary is one row of list_containers.
type ContainerSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
}

// ContainerAction reports the container a lifecycle operation was applied to.
type ContainerAction struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
	Status   string `json:"status"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// ImageSummary is one row of list_images.
type ImageSummary struct {
	ID      string   `json:"id"`
	Tags    []string `json:"tags"`
	Size    int64    `json:"size"`
	Created string   `json:"created"`
}

// ImageAction reports the image a pull or remove was applied to.
type ImageAction struct {
	ID     string   `json:"id"`
	Tags   []string `json:"tags"`
	Status string   `json:"status"`
}

// Logs holds a container's combined stdout and stderr.
type Logs struct {
	Logs string `json:"logs"`
}

// ExecResult is the outcome of a command run inside a container.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
}

// CreateOptions describes a container to create.
type CreateOptions struct {
	Image   string
	Command string
	Name    string
}

// RunOptions describes a container to create and start. When Detach is
// false the call waits for the container to exit.
type RunOptions struct {
	CreateOptions
	Detach bool
}

// LogOptions filters container logs. Tail is a line count or "all"; Since is
// a unix timestamp, an RFC3339 time or a duration relative to now.
type LogOptions struct {
	Tail  string
	Since string
}

// ExecOptions describes a command to run in a running container.
type ExecOptions struct {
	Command string
	WorkDir string
}

// wire types of the Docker-compatible API

type apiContainer struct {
	ID     string   `json:"Id"`
	Names  []string `json:"Names"`
	Image  string   `json:"Image"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

type apiContainerRef struct {
	ID     string `json:"Id"`
	Name   string `json:"Name"`
	Config struct {
		Image string `json:"Image"`
		Tty   bool   `json:"Tty"`
	} `json:"Config"`
}

type apiImage struct {
	ID       string   `json:"Id"`
	RepoTags []string `json:"RepoTags"`
	Size     int64    `json:"Size"`
	Created  int64    `json:"Created"`
}

type apiImageRef struct {
	ID       string   `json:"Id"`
	RepoTags []string `json:"RepoTags"`
}

type apiIDResponse struct {
	ID string `json:"Id"`
}

type apiWaitResponse struct {
	StatusCode int `json:"StatusCode"`
}

type apiExecInspect struct {
	ExitCode int  `json:"ExitCode"`
	Running  bool `json:"Running"`
}

type apiErrorBody struct {
	Message string `json:"message"`
	Cause   string `json:"cause"`
}

type apiPullMessage struct {
	Status      string `json:"status"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}
