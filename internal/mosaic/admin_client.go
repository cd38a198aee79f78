package mosaic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrAdminAddrRequired = errors.New("mosaic: admin address required")
	ErrAdminRejected     = errors.New("mosaic: admin request rejected")
)

// AdminClient drives a Manager's admin surface over its loopback
// listener.
type AdminClient struct {
	baseURL string
	client  *http.Client
}

// NewAdminClient targets the host:port of a listening manager.
func NewAdminClient(addr string) (*AdminClient, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrAdminAddrRequired
	}
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &AdminClient{
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 2 * time.Second},
	}, nil
}

func (c *AdminClient) do(req adminControlRequest) (adminControlResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return adminControlResponse{}, fmt.Errorf("mosaic: encode admin request: %w", err)
	}
	resp, err := c.client.Post(c.baseURL+"/admin", "application/json", bytes.NewReader(payload))
	if err != nil {
		return adminControlResponse{}, fmt.Errorf("mosaic: admin request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return adminControlResponse{}, fmt.Errorf("mosaic: read admin response: %w", err)
	}
	var out adminControlResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return adminControlResponse{}, fmt.Errorf("mosaic: decode admin response: %w", err)
	}
	return out, nil
}

// exec runs one admin action and unwraps the ok/error envelope.
func (c *AdminClient) exec(req adminControlRequest) (any, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("%w: %s: %s", ErrAdminRejected, req.Action, resp.Error)
	}
	return resp.Data, nil
}

func (c *AdminClient) Status() (any, error) {
	return c.exec(adminControlRequest{Action: "status"})
}

func (c *AdminClient) Tiles() (any, error) {
	return c.exec(adminControlRequest{Action: "tiles"})
}

func (c *AdminClient) Queues() (any, error) {
	return c.exec(adminControlRequest{Action: "queues"})
}

func (c *AdminClient) Callbacks(limit int) (any, error) {
	return c.exec(adminControlRequest{Action: "callbacks", Limit: limit})
}

func (c *AdminClient) AddTile(path string) (any, error) {
	return c.exec(adminControlRequest{Action: "add_tile", Path: path})
}

func (c *AdminClient) RemoveTile(name string) error {
	_, err := c.exec(adminControlRequest{Action: "remove_tile", Name: name})
	return err
}

func (c *AdminClient) RunTile(name, path string) error {
	_, err := c.exec(adminControlRequest{Action: "run_tile", Name: name, Path: path})
	return err
}

func (c *AdminClient) RequestAction(name, kind string, values []any) error {
	_, err := c.exec(adminControlRequest{Action: "request_action", Name: name, Kind: kind, Values: values})
	return err
}

func (c *AdminClient) CheckQueue(name string) (any, error) {
	return c.exec(adminControlRequest{Action: "check_queue", Name: name})
}

func (c *AdminClient) PopQueue(name string) error {
	_, err := c.exec(adminControlRequest{Action: "pop_queue", Name: name})
	return err
}

func (c *AdminClient) Stop() error {
	_, err := c.exec(adminControlRequest{Action: "stop"})
	return err
}
