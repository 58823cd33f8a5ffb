package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Get() has empty fields: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestString(t *testing.T) {
	want := Version + " (" + Commit + ") built at " + BuildTime
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestUserAgent(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	if got := UserAgent(); got != "idbridge/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
	if !strings.HasPrefix(UserAgent(), "idbridge/") {
		t.Error("UserAgent() missing product name")
	}
}
