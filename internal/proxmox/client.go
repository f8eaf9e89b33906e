package proxmox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"vmpanel/internal/config"
	"vmpanel/internal/logger"
)

var (
	// ErrUnreachable means the Proxmox API could not be reached at all.
	ErrUnreachable = errors.New("hypervisor unreachable")
	// ErrVMNotFound means the Proxmox API does not know the VM id.
	ErrVMNotFound = errors.New("vm not found")
)

// VMStatus is the normalized live state of one VM.
type VMStatus struct {
	VMID   int     `json:"vm_id"`
	Name   string  `json:"vm_name"`
	Status string  `json:"status"` // running, stopped, paused, unknown
	Uptime int64   `json:"uptime"`
	CPU    float64 `json:"cpu"`
	Mem    int64   `json:"memory"`
	MaxMem int64   `json:"maxmem"`
	Error  string  `json:"error,omitempty"`
}

// ActionResult reports the outcome of a start/stop/shutdown request.
// Success=false with a message means the VM was already in the target state;
// that is a no-op, not a failure.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	VMID    int    `json:"vm_id"`
	VMName  string `json:"vm_name"`
	Status  string `json:"status"`
}

// Client is a thin typed wrapper over the Proxmox VE HTTP API, scoped to a
// single cluster node.
type Client struct {
	baseURL string
	node    string
	token   string
	http    *http.Client
}

func NewClient(cfg config.ProxmoxConfig) *Client {
	transport := &http.Transport{}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL: fmt.Sprintf("https://%s:%d/api2/json", cfg.Host, cfg.Port),
		node:    cfg.Node,
		token:   fmt.Sprintf("PVEAPIToken=%s=%s", cfg.TokenID, cfg.TokenSecret),
		http: &http.Client{
			Timeout:   cfg.RequestTimeout(),
			Transport: transport,
		},
	}
}

// NewClientForURL builds a client against an explicit base URL. Used by tests
// to point at a fake API server.
func NewClientForURL(baseURL, node string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL + "/api2/json",
		node:    node,
		http:    httpClient,
	}
}

type statusPayload struct {
	Data struct {
		Name   string  `json:"name"`
		Status string  `json:"status"`
		Uptime int64   `json:"uptime"`
		CPU    float64 `json:"cpu"`
		Mem    int64   `json:"mem"`
		MaxMem int64   `json:"maxmem"`
	} `json:"data"`
}

// Status queries the live state of one VM
func (c *Client) Status(ctx context.Context, vmID int) (*VMStatus, error) {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/status/current", c.node, vmID)

	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: VM %d (status %d)", ErrVMNotFound, vmID, resp.StatusCode)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding VM %d status: %w", vmID, err)
	}

	name := payload.Data.Name
	if name == "" {
		name = fmt.Sprintf("VM-%d", vmID)
	}
	status := payload.Data.Status
	if status == "" {
		status = "unknown"
	}

	return &VMStatus{
		VMID:   vmID,
		Name:   name,
		Status: status,
		Uptime: payload.Data.Uptime,
		CPU:    payload.Data.CPU,
		Mem:    payload.Data.Mem,
		MaxMem: payload.Data.MaxMem,
	}, nil
}

// ListAll queries each VM id individually. A failing VM is reported with
// status "unknown" and the error attached; it never aborts the batch.
func (c *Client) ListAll(ctx context.Context, vmIDs []int) []VMStatus {
	vms := make([]VMStatus, 0, len(vmIDs))
	for _, vmID := range vmIDs {
		status, err := c.Status(ctx, vmID)
		if err != nil {
			logger.Warn("could not get VM status",
				zap.Int("vm_id", vmID),
				zap.Error(err))
			vms = append(vms, VMStatus{
				VMID:   vmID,
				Name:   fmt.Sprintf("VM-%d", vmID),
				Status: "unknown",
				Error:  err.Error(),
			})
			continue
		}
		vms = append(vms, *status)
	}
	return vms
}

// Start powers on a VM. Returns a no-op result if it is already running.
func (c *Client) Start(ctx context.Context, vmID int) (*ActionResult, error) {
	current, err := c.Status(ctx, vmID)
	if err != nil {
		return nil, err
	}

	if current.Status == "running" {
		return &ActionResult{
			Success: false,
			Message: "VM is already running",
			VMID:    vmID,
			VMName:  current.Name,
			Status:  "running",
		}, nil
	}

	if err := c.action(ctx, vmID, "start"); err != nil {
		return nil, err
	}

	logger.Info("started VM", zap.Int("vm_id", vmID))
	return &ActionResult{
		Success: true,
		Message: "VM start command sent successfully",
		VMID:    vmID,
		VMName:  current.Name,
		Status:  "starting",
	}, nil
}

// Stop force-stops a VM. Returns a no-op result if it is already stopped.
func (c *Client) Stop(ctx context.Context, vmID int) (*ActionResult, error) {
	current, err := c.Status(ctx, vmID)
	if err != nil {
		return nil, err
	}

	if current.Status == "stopped" {
		return &ActionResult{
			Success: false,
			Message: "VM is already stopped",
			VMID:    vmID,
			VMName:  current.Name,
			Status:  "stopped",
		}, nil
	}

	if err := c.action(ctx, vmID, "stop"); err != nil {
		return nil, err
	}

	logger.Info("stopped VM", zap.Int("vm_id", vmID))
	return &ActionResult{
		Success: true,
		Message: "VM stop command sent successfully",
		VMID:    vmID,
		VMName:  current.Name,
		Status:  "stopping",
	}, nil
}

// Shutdown gracefully shuts down a VM. Returns a no-op result if it is
// already stopped.
func (c *Client) Shutdown(ctx context.Context, vmID int) (*ActionResult, error) {
	current, err := c.Status(ctx, vmID)
	if err != nil {
		return nil, err
	}

	if current.Status == "stopped" {
		return &ActionResult{
			Success: false,
			Message: "VM is already stopped",
			VMID:    vmID,
			VMName:  current.Name,
			Status:  "stopped",
		}, nil
	}

	if err := c.action(ctx, vmID, "shutdown"); err != nil {
		return nil, err
	}

	logger.Info("sent shutdown command to VM", zap.Int("vm_id", vmID))
	return &ActionResult{
		Success: true,
		Message: "VM shutdown command sent successfully",
		VMID:    vmID,
		VMName:  current.Name,
		Status:  "shutting_down",
	}, nil
}

// Health reports whether the Proxmox API answers its version probe
func (c *Client) Health(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/version")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) action(ctx context.Context, vmID int, name string) error {
	path := fmt.Sprintf("/nodes/%s/qemu/%d/status/%s", c.node, vmID, name)

	resp, err := c.do(ctx, http.MethodPost, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to %s VM %d: status %d: %s", name, vmID, resp.StatusCode, body)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}
