package config

import (
	"testing"
	"time"
)

func TestStringAndRequired(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "value")
	if got := String("CFG_TEST_STR", "fallback"); got != "value" {
		t.Errorf("String = %q", got)
	}
	if got := String("CFG_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("String fallback = %q", got)
	}
	if _, err := RequiredString("CFG_TEST_MISSING"); err == nil {
		t.Error("RequiredString: expected error for unset key")
	}
}

func TestIntAndMinutes(t *testing.T) {
	t.Setenv("CFG_TEST_INT", "30")
	if got := Int("CFG_TEST_INT", 5); got != 30 {
		t.Errorf("Int = %d", got)
	}
	t.Setenv("CFG_TEST_BAD", "not-a-number")
	if got := Int("CFG_TEST_BAD", 5); got != 5 {
		t.Errorf("Int with garbage = %d, want fallback", got)
	}
	if got := Minutes("CFG_TEST_INT", time.Hour); got != 30*time.Minute {
		t.Errorf("Minutes = %v", got)
	}
	if got := Minutes("CFG_TEST_MISSING", time.Hour); got != time.Hour {
		t.Errorf("Minutes fallback = %v", got)
	}
}

func TestPort(t *testing.T) {
	if p, err := Port("CFG_TEST_PORT_MISSING", "8084"); err != nil || p != "8084" {
		t.Errorf("Port fallback = %q, %v", p, err)
	}
	t.Setenv("CFG_TEST_PORT", "70000")
	if _, err := Port("CFG_TEST_PORT", "8084"); err == nil {
		t.Error("Port: expected error for out-of-range value")
	}
}
