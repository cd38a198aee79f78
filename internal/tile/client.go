package tile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/mosaicctl/internal/protocol"
)

var (
	ErrRegistrationRejected = errors.New("tile: registration rejected")
	ErrCallbackRejected     = errors.New("tile: callback rejected")
	ErrUnreachable          = errors.New("tile: manager unreachable")
)

// ClientConfig points one worker at its manager's loopback listener.
type ClientConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:    "127.0.0.1",
		Timeout: 2 * time.Second,
	}
}

// Client speaks the wire protocol: one JSON object per POST, one
// response per connection. Any transport-level failure surfaces as
// ErrUnreachable so callers can tell a dead manager from a rejection.
type Client struct {
	url    string
	client *http.Client
}

func NewClient(port int) *Client {
	cfg := DefaultClientConfig()
	cfg.Port = port
	return NewClientWithConfig(cfg)
}

func NewClientWithConfig(cfg ClientConfig) *Client {
	def := DefaultClientConfig()
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = def.Host
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		url:    fmt.Sprintf("http://%s/", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) post(payload []byte) ([]byte, int, error) {
	resp, err := c.client.Post(c.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	return body, resp.StatusCode, nil
}

// Register announces the worker under its name. The control plane must
// answer with the exact acknowledgement or the registration failed.
func (c *Client) Register(name string) error {
	payload, err := protocol.EncodeRegister(name)
	if err != nil {
		return err
	}
	body, status, err := c.post(payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrRegistrationRejected, status, strings.TrimSpace(string(body)))
	}
	if _, err := protocol.DecodeRegisterResult(body); err != nil {
		return fmt.Errorf("%w: %v", ErrRegistrationRejected, err)
	}
	return nil
}

// Unregister withdraws the worker from the active set.
func (c *Client) Unregister(name string) error {
	payload, err := protocol.EncodeUnregister(name)
	if err != nil {
		return err
	}
	_, status, err := c.post(payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("tile: unregister answered status %d", status)
	}
	return nil
}

// AskAction polls for the worker's queue head. An empty map means
// nothing is pending.
func (c *Client) AskAction(name string) (protocol.ActionMap, error) {
	payload, err := protocol.EncodeAskAction(name)
	if err != nil {
		return nil, err
	}
	body, status, err := c.post(payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("tile: ask_action answered status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return protocol.DecodeActionMap(body)
}

// Callback reports one executed action and demands the pop
// confirmation; anything but an exact true is a rejection.
func (c *Client) Callback(cb protocol.Callback) error {
	payload, err := protocol.EncodeCallback(cb)
	if err != nil {
		return err
	}
	body, status, err := c.post(payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrCallbackRejected, status, strings.TrimSpace(string(body)))
	}
	result, err := protocol.DecodeCallbackResult(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCallbackRejected, err)
	}
	if !result.Popped() {
		return fmt.Errorf("%w: queue_pop answered %v", ErrCallbackRejected, result.QueuePop)
	}
	return nil
}

// AddAction enqueues an action for another worker.
func (c *Client) AddAction(req protocol.ActionRequest) error {
	payload, err := protocol.EncodeAddAction(req)
	if err != nil {
		return err
	}
	body, status, err := c.post(payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("tile: add_action answered status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}
