package app

import (
	"slices"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("T_STR", "  value ")
	t.Setenv("T_BOOL", "nope")
	t.Setenv("T_INT_NEG", "-3")
	t.Setenv("T_INT32", "40")
	t.Setenv("T_DUR", "1m30s")
	t.Setenv("T_DUR_ZERO", "0s")
	t.Setenv("T_LIST", " a, ,b ,")
	t.Setenv("T_LIST_EMPTY", " , ")

	if got := EnvString("T_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvString("T_UNSET", "def"); got != "def" {
		t.Fatalf("EnvString unset=%q", got)
	}
	if got := EnvBool("T_BOOL", true); !got {
		t.Fatalf("EnvBool must keep default on parse error")
	}
	if got := EnvInt("T_INT_NEG", 7); got != 7 {
		t.Fatalf("EnvInt negative=%d", got)
	}
	if got := EnvInt32("T_INT32", 1); got != 40 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvDuration("T_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("EnvDuration=%v", got)
	}
	if got := EnvDuration("T_DUR_ZERO", time.Second); got != time.Second {
		t.Fatalf("EnvDuration zero=%v", got)
	}
	if got := EnvList("T_LIST", nil); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("EnvList=%v", got)
	}
	if got := EnvList("T_LIST_EMPTY", []string{"x"}); !slices.Equal(got, []string{"x"}) {
		t.Fatalf("EnvList empty=%v", got)
	}
}
