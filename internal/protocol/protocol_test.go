package protocol

import (
	"errors"
	"testing"

	"github.com/danmuck/mosaicctl/internal/testutil/testlog"
)

func TestDecodeRequestDispatchesRecognizedKeys(t *testing.T) {
	testlog.Start(t)

	req, err := DecodeRequest([]byte(`{"register": "  form1  "}`))
	if err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if req.Kind != KindRegister || req.Name != "form1" {
		t.Fatalf("unexpected register request: %+v", req)
	}

	req, err = DecodeRequest([]byte(`{"unregister": "form1", "trace_id": "abc"}`))
	if err != nil {
		t.Fatalf("decode unregister with extra field: %v", err)
	}
	if req.Kind != KindUnregister || req.Name != "form1" {
		t.Fatalf("unexpected unregister request: %+v", req)
	}

	req, err = DecodeRequest([]byte(`{"ask_action": "form2"}`))
	if err != nil {
		t.Fatalf("decode ask_action: %v", err)
	}
	if req.Kind != KindAskAction || req.Name != "form2" {
		t.Fatalf("unexpected ask_action request: %+v", req)
	}

	req, err = DecodeRequest([]byte(`{"callback": {"name": "form1", "action": "print", "status": 1, "error": "boom"}}`))
	if err != nil {
		t.Fatalf("decode callback: %v", err)
	}
	if req.Kind != KindCallback || req.Callback.Action != "print" || req.Callback.Status != 1 {
		t.Fatalf("unexpected callback request: %+v", req)
	}

	req, err = DecodeRequest([]byte(`{"add_action": {"tile": "form2", "action": "print", "values": ["self", "hello"]}}`))
	if err != nil {
		t.Fatalf("decode add_action: %v", err)
	}
	if req.Kind != KindAddAction || req.Action.Tile != "form2" || len(req.Action.Values) != 2 {
		t.Fatalf("unexpected add_action request: %+v", req)
	}

	req, err = DecodeRequest([]byte(`{"ping": "form1"}`))
	if err != nil {
		t.Fatalf("decode unrecognized key: %v", err)
	}
	if req.Kind != KindUnknown {
		t.Fatalf("expected KindUnknown, got %+v", req)
	}
}

func TestDecodeRequestRejectsSchemaViolations(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"empty body":          ``,
		"not json":            `register form1`,
		"not an object":       `["register", "form1"]`,
		"two recognized keys": `{"register": "a", "unregister": "b"}`,
		"name not a string":   `{"register": 7}`,
		"blank name":          `{"ask_action": "   "}`,
		"callback not object": `{"callback": "form1"}`,
		"callback bad status": `{"callback": {"name": "a", "action": "print", "status": 2}}`,
		"callback no action":  `{"callback": {"name": "a", "status": 0}}`,
		"add_action no tile":  `{"add_action": {"action": "print"}}`,
	}
	for label, body := range cases {
		if _, err := DecodeRequest([]byte(body)); !errors.Is(err, ErrViolation) {
			t.Fatalf("%s: expected violation, got %v", label, err)
		}
	}

	var verr *ViolationError
	_, err := DecodeRequest([]byte(`{"register": ""}`))
	if !errors.As(err, &verr) || verr.Reason == "" {
		t.Fatalf("expected a reasoned ViolationError, got %v", err)
	}
}

func TestEncodersRoundTripThroughDecode(t *testing.T) {
	testlog.Start(t)

	body, err := EncodeRegister("form1")
	if err != nil {
		t.Fatalf("encode register: %v", err)
	}
	req, err := DecodeRequest(body)
	if err != nil || req.Kind != KindRegister || req.Name != "form1" {
		t.Fatalf("register round trip: req=%+v err=%v", req, err)
	}

	if _, err := EncodeUnregister("   "); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected violation for blank name, got %v", err)
	}

	body, err = EncodeCallback(Callback{Name: "form1", Action: "print", Status: 0})
	if err != nil {
		t.Fatalf("encode callback: %v", err)
	}
	req, err = DecodeRequest(body)
	if err != nil || req.Callback.Name != "form1" || req.Callback.Status != 0 {
		t.Fatalf("callback round trip: req=%+v err=%v", req, err)
	}

	if _, err := EncodeCallback(Callback{Name: "form1", Action: "print", Status: 3}); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected violation for status 3, got %v", err)
	}

	body, err = EncodeAddAction(ActionRequest{Tile: "form2", Kind: "pass"})
	if err != nil {
		t.Fatalf("encode add_action: %v", err)
	}
	req, err = DecodeRequest(body)
	if err != nil || req.Kind != KindAddAction || req.Action.Kind != "pass" {
		t.Fatalf("add_action round trip: req=%+v err=%v", req, err)
	}
}

func TestResponseDecoders(t *testing.T) {
	testlog.Start(t)

	if _, err := DecodeRegisterResult([]byte(`{"result": "OK"}`)); err != nil {
		t.Fatalf("decode register result: %v", err)
	}
	if _, err := DecodeRegisterResult([]byte(`{"result": "nope"}`)); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected violation for bad register result, got %v", err)
	}

	actions, err := DecodeActionMap(nil)
	if err != nil || len(actions) != 0 {
		t.Fatalf("empty ask_action body: actions=%v err=%v", actions, err)
	}
	actions, err = DecodeActionMap([]byte(`{"print": ["self", "hello"]}`))
	if err != nil {
		t.Fatalf("decode action map: %v", err)
	}
	if len(actions) != 1 || len(actions["print"]) != 2 {
		t.Fatalf("unexpected action map: %v", actions)
	}
	if _, err := DecodeActionMap([]byte(`{"print": "hello"}`)); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected violation for non-list values, got %v", err)
	}

	res, err := DecodeCallbackResult([]byte(`{"queue_pop": true}`))
	if err != nil || !res.Popped() {
		t.Fatalf("queue_pop true: res=%+v err=%v", res, err)
	}
	res, err = DecodeCallbackResult([]byte(`{"queue_pop": false}`))
	if err != nil || res.Popped() {
		t.Fatalf("queue_pop false: res=%+v err=%v", res, err)
	}
	res, err = DecodeCallbackResult([]byte(`{"queue_pop": "Couldn't pop from queue, no Form 'x' present"}`))
	if err != nil || res.Popped() {
		t.Fatalf("queue_pop error text: res=%+v err=%v", res, err)
	}
	if _, err := DecodeCallbackResult([]byte(`{"queue_pop": 1}`)); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected violation for numeric queue_pop, got %v", err)
	}
	if _, err := DecodeCallbackResult([]byte(`{}`)); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected violation for missing queue_pop, got %v", err)
	}
}
