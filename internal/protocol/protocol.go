// Package protocol defines the loopback wire schema spoken between the
// mosaic control plane and its tile workers.
//
// Every request is one JSON object carried in one HTTP POST body. Exactly
// one recognized key selects the request kind; unrecognized keys alongside
// it are ignored. Payloads that are not JSON objects, carry more than one
// recognized key, or hold values of the wrong shape are rejected as schema
// violations, never guessed at. An object with no recognized key decodes
// as KindUnknown so the listener can drop it without failing the request.
package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind identifies one wire request shape.
type Kind string

const (
	// KindRegister announces a worker ready to poll for actions.
	KindRegister Kind = "register"
	// KindUnregister withdraws a worker from the active set.
	KindUnregister Kind = "unregister"
	// KindAskAction polls for the head of the worker's action queue.
	KindAskAction Kind = "ask_action"
	// KindAddAction enqueues an action for another worker.
	KindAddAction Kind = "add_action"
	// KindCallback reports the outcome of an executed action.
	KindCallback Kind = "callback"
	// KindUnknown covers well-formed objects with no recognized key.
	KindUnknown Kind = "unknown"
)

// recognizedKinds is the dispatch order for request keys.
var recognizedKinds = []Kind{
	KindRegister,
	KindUnregister,
	KindAskAction,
	KindAddAction,
	KindCallback,
}

// Request is one decoded wire request.
type Request struct {
	Kind     Kind
	Name     string
	Action   ActionRequest
	Callback Callback
}

// ActionRequest asks the control plane to enqueue an action for a tile.
type ActionRequest struct {
	Tile   string `json:"tile"`
	Kind   string `json:"action"`
	Values []any  `json:"values"`
}

// Validate reports the first schema problem with the enqueue request.
func (r ActionRequest) Validate() error {
	if strings.TrimSpace(r.Tile) == "" {
		return violation("add_action requires a non-empty tile name")
	}
	if strings.TrimSpace(r.Kind) == "" {
		return violation("add_action requires a non-empty action kind")
	}
	return nil
}

// Callback reports one executed action back to the control plane.
// Status 0 means the action succeeded, 1 that it failed; Error carries
// the failure detail when Status is 1.
type Callback struct {
	Name   string `json:"name"`
	Action string `json:"action"`
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Validate reports the first schema problem with the callback.
func (c Callback) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return violation("callback requires a non-empty worker name")
	}
	if strings.TrimSpace(c.Action) == "" {
		return violation("callback requires a non-empty action name")
	}
	if c.Status != 0 && c.Status != 1 {
		return violation("callback status must be 0 or 1, got %d", c.Status)
	}
	return nil
}

// DecodeRequest parses one wire request body. It never panics on
// arbitrary input; anything outside the schema comes back as a
// ViolationError.
func DecodeRequest(body []byte) (Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Request{}, violation("empty request body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Request{}, violation("request body is not a JSON object: %v", err)
	}

	kind := KindUnknown
	var raw json.RawMessage
	for _, k := range recognizedKinds {
		v, ok := fields[string(k)]
		if !ok {
			continue
		}
		if kind != KindUnknown {
			return Request{}, violation("request carries both %q and %q", kind, k)
		}
		kind = k
		raw = v
	}
	if kind == KindUnknown {
		return Request{Kind: KindUnknown}, nil
	}

	switch kind {
	case KindRegister, KindUnregister, KindAskAction:
		name, err := decodeWorkerName(kind, raw)
		if err != nil {
			return Request{}, err
		}
		return Request{Kind: kind, Name: name}, nil
	case KindAddAction:
		var req ActionRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return Request{}, violation("add_action payload is not an object: %v", err)
		}
		if err := req.Validate(); err != nil {
			return Request{}, err
		}
		req.Tile = strings.TrimSpace(req.Tile)
		req.Kind = strings.TrimSpace(req.Kind)
		return Request{Kind: kind, Name: req.Tile, Action: req}, nil
	case KindCallback:
		var cb Callback
		if err := json.Unmarshal(raw, &cb); err != nil {
			return Request{}, violation("callback payload is not an object: %v", err)
		}
		if err := cb.Validate(); err != nil {
			return Request{}, err
		}
		cb.Name = strings.TrimSpace(cb.Name)
		cb.Action = strings.TrimSpace(cb.Action)
		return Request{Kind: kind, Name: cb.Name, Callback: cb}, nil
	}
	return Request{}, violation("unhandled request kind %q", kind)
}

// decodeWorkerName extracts the string value of a name-carrying key.
func decodeWorkerName(kind Kind, raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", violation("%s value must be a string: %v", kind, err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", violation("%s requires a non-empty worker name", kind)
	}
	return name, nil
}
