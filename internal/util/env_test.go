package util

import (
	"testing"
	"time"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("CHIVE_TEST_STRING", "value")
	t.Setenv("CHIVE_TEST_EMPTY", "")

	if got := GetEnvString("CHIVE_TEST_STRING", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := GetEnvString("CHIVE_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for empty value, got %q", got)
	}
	if got := GetEnvString("CHIVE_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for unset value, got %q", got)
	}
}

func TestGetEnvNumericAndBool(t *testing.T) {
	t.Setenv("CHIVE_TEST_NUM", "2.5")
	t.Setenv("CHIVE_TEST_BAD_NUM", "abc")
	t.Setenv("CHIVE_TEST_BOOL", "true")
	t.Setenv("CHIVE_TEST_BAD_BOOL", "yes")

	if got := GetEnvNumeric("CHIVE_TEST_NUM", 1); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
	if got := GetEnvNumeric("CHIVE_TEST_BAD_NUM", 7); got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
	if !GetEnvBool("CHIVE_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	if GetEnvBool("CHIVE_TEST_BAD_BOOL", false) {
		t.Fatal("expected default false for malformed bool")
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  time.Duration
	}{
		{name: "unset", want: time.Minute},
		{name: "valid", value: "90s", set: true, want: 90 * time.Second},
		{name: "malformed", value: "soon", set: true, want: time.Minute},
		{name: "negative", value: "-5s", set: true, want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("CHIVE_TEST_DURATION", tt.value)
			}
			if got := GetEnvDuration("CHIVE_TEST_DURATION", time.Minute); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
