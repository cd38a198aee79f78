package main

import (
	"strings"
	"testing"
)

func TestParseValues(t *testing.T) {
	values, err := parseValues(` ["led", 3, true] `)
	if err != nil {
		t.Fatalf("parse values: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("unexpected value count: %d", len(values))
	}
	if values[0] != "led" {
		t.Fatalf("unexpected first value: %v", values[0])
	}
	if values[1] != float64(3) {
		t.Fatalf("unexpected second value: %v", values[1])
	}
	if values[2] != true {
		t.Fatalf("unexpected third value: %v", values[2])
	}
}

func TestParseValuesEmptyMeansNone(t *testing.T) {
	values, err := parseValues("   ")
	if err != nil {
		t.Fatalf("parse values: %v", err)
	}
	if values != nil {
		t.Fatalf("expected no values, got %v", values)
	}
}

func TestParseValuesRejectsNonArrays(t *testing.T) {
	if _, err := parseValues(`{"led": true}`); err == nil {
		t.Fatalf("expected rejection for JSON object")
	}
	if _, err := parseValues(`led`); err == nil {
		t.Fatalf("expected rejection for bare word")
	}
}

func TestFormatPayload(t *testing.T) {
	rendered, err := formatPayload(map[string]any{"manager": "mosaic"})
	if err != nil {
		t.Fatalf("format payload: %v", err)
	}
	if !strings.Contains(rendered, `"manager": "mosaic"`) {
		t.Fatalf("unexpected rendering: %s", rendered)
	}

	empty, err := formatPayload(nil)
	if err != nil {
		t.Fatalf("format nil payload: %v", err)
	}
	if !strings.Contains(empty, "(none)") {
		t.Fatalf("unexpected nil rendering: %s", empty)
	}
}
