package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RegisterOK is the only accepted register acknowledgement value.
const RegisterOK = "OK"

// RegisterResult is the control plane's answer to a register request.
type RegisterResult struct {
	Result string `json:"result"`
}

// CallbackResult is the control plane's answer to a callback. QueuePop is
// true when the acknowledged action was removed from the queue, false when
// the queue entry existed but was empty, and an error string when the
// worker had no queue entry at all.
type CallbackResult struct {
	QueuePop any `json:"queue_pop"`
}

// Popped reports whether the control plane confirmed the removal.
func (r CallbackResult) Popped() bool {
	b, ok := r.QueuePop.(bool)
	return ok && b
}

// ActionMap is an ask_action response: empty when no action is pending,
// otherwise the queue head keyed by action kind. The control plane never
// sends more than one entry; workers treat a larger map as a violation.
type ActionMap map[string][]any

// EncodeRegister builds a register request body.
func EncodeRegister(name string) ([]byte, error) {
	return encodeNamed(KindRegister, name)
}

// EncodeUnregister builds an unregister request body.
func EncodeUnregister(name string) ([]byte, error) {
	return encodeNamed(KindUnregister, name)
}

// EncodeAskAction builds an ask_action request body.
func EncodeAskAction(name string) ([]byte, error) {
	return encodeNamed(KindAskAction, name)
}

// EncodeAddAction builds an add_action request body.
func EncodeAddAction(req ActionRequest) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]ActionRequest{string(KindAddAction): req})
}

// EncodeCallback builds a callback request body.
func EncodeCallback(cb Callback) ([]byte, error) {
	if err := cb.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]Callback{string(KindCallback): cb})
}

func encodeNamed(kind Kind, name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, violation("%s requires a non-empty worker name", kind)
	}
	return json.Marshal(map[string]string{string(kind): name})
}

// DecodeRegisterResult parses a register response and insists on the
// exact acknowledgement value.
func DecodeRegisterResult(body []byte) (RegisterResult, error) {
	var res RegisterResult
	if err := json.Unmarshal(bytes.TrimSpace(body), &res); err != nil {
		return RegisterResult{}, violation("register response is not an object: %v", err)
	}
	if res.Result != RegisterOK {
		return RegisterResult{}, violation("register response result %q is not %q", res.Result, RegisterOK)
	}
	return res, nil
}

// DecodeActionMap parses an ask_action response. An empty body means no
// pending action.
func DecodeActionMap(body []byte) (ActionMap, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ActionMap{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, violation("ask_action response is not a JSON object: %v", err)
	}
	actions := make(ActionMap, len(fields))
	for kind, raw := range fields {
		var values []any
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, violation("action %q values are not a list: %v", kind, err)
		}
		actions[kind] = values
	}
	return actions, nil
}

// DecodeCallbackResult parses a callback response; queue_pop must be
// present and either a bool or an error string.
func DecodeCallbackResult(body []byte) (CallbackResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &fields); err != nil {
		return CallbackResult{}, violation("callback response is not a JSON object: %v", err)
	}
	raw, ok := fields["queue_pop"]
	if !ok {
		return CallbackResult{}, violation("callback response is missing queue_pop")
	}
	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return CallbackResult{QueuePop: asBool}, nil
	}
	var asText string
	if err := json.Unmarshal(raw, &asText); err == nil {
		return CallbackResult{QueuePop: asText}, nil
	}
	return CallbackResult{}, violation("queue_pop must be a bool or a string")
}
