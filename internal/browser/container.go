package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	containerImage       = "browserless/chrome:latest"
	containerPort        = "3000/tcp"
	containerStopTimeout = 30 * time.Second
	readyPollInterval    = 500 * time.Millisecond
	readyMaxPolls        = 20
)

// ContainerInstance is a browser running in a Docker container
type ContainerInstance struct {
	ContainerID string
	SessionID   string
	ConnectURL  string
	Port        string
}

// ContainerPool starts disposable browser containers through the Docker Engine API
type ContainerPool struct {
	client     *client.Client
	image      string
	httpClient *http.Client
}

// NewContainerPool connects to the Docker daemon described by the environment
func NewContainerPool() (*ContainerPool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &ContainerPool{
		client:     cli,
		image:      containerImage,
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}, nil
}

// Launch starts a browser container and waits until its DevTools endpoint accepts connections
func (p *ContainerPool) Launch(ctx context.Context, sessionID string) (*ContainerInstance, error) {
	containerConfig := &container.Config{
		Image: p.image,
		Labels: map[string]string{
			"session-id": sessionID,
			"managed-by": "saucedemo-e2e",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"EXIT_ON_HEALTH_FAILURE=false",
		},
		ExposedPorts: nat.PortSet{
			containerPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
		ShmSize: 1 << 30,
	}

	resp, err := p.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil,
		fmt.Sprintf("e2e-browser-%s", sessionID[:8]))
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), containerStopTimeout)
		defer cancel()
		p.Stop(stopCtx, resp.ID)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := p.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports[containerPort]
	if len(bindings) == 0 {
		cleanup()
		return nil, fmt.Errorf("container %s has no binding for %s", resp.ID[:12], containerPort)
	}
	port := bindings[0].HostPort
	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)

	limiter := rate.NewLimiter(rate.Every(readyPollInterval), 1)
	connectURL, err := waitForDevTools(ctx, p.httpClient, baseURL, limiter, readyMaxPolls)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	return &ContainerInstance{
		ContainerID: resp.ID,
		SessionID:   sessionID,
		ConnectURL:  connectURL,
		Port:        port,
	}, nil
}

// Stop stops and removes a browser container
func (p *ContainerPool) Stop(ctx context.Context, containerID string) error {
	timeout := 10
	if err := p.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := p.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}

	return nil
}

// EnsureImage pulls the browser image unless it is already present
func (p *ContainerPool) EnsureImage(ctx context.Context) error {
	images, err := p.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == p.image {
				return nil
			}
		}
	}

	reader, err := p.client.ImagePull(ctx, p.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *ContainerPool) Close() error {
	return p.client.Close()
}

type versionInfo struct {
	Browser              string `json:"Browser"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// waitForDevTools polls /json/version until the browser answers, then checks
// that the advertised DevTools websocket completes a handshake. The
// advertised host is container-internal and is replaced by baseURL's host.
func waitForDevTools(ctx context.Context, httpClient *http.Client, baseURL string, limiter *rate.Limiter, maxPolls int) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DevTools address %q: %w", baseURL, err)
	}

	var lastErr error
	for i := 0; i < maxPolls; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}

		info, err := fetchVersion(ctx, httpClient, baseURL+"/json/version")
		if err != nil {
			lastErr = err
			continue
		}

		wsURL, err := url.Parse(info.WebSocketDebuggerURL)
		if err != nil || wsURL.Host == "" {
			lastErr = fmt.Errorf("invalid webSocketDebuggerUrl %q", info.WebSocketDebuggerURL)
			continue
		}
		wsURL.Host = base.Host

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
		if err != nil {
			lastErr = fmt.Errorf("devtools websocket handshake failed: %w", err)
			continue
		}
		conn.Close()

		return wsURL.String(), nil
	}

	return "", fmt.Errorf("browser did not become ready after %d polls: %w", maxPolls, lastErr)
}

func fetchVersion(ctx context.Context, httpClient *http.Client, endpoint string) (*versionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", endpoint, resp.StatusCode)
	}

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", endpoint, err)
	}
	return &info, nil
}
