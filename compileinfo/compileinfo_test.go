package compileinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	z := &debug.BuildInfo{
		GoVersion: "go1.21.0",
		Path:      "github.com/carbocation/sigvival/cmd/sigvival",
		Main:      debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2024-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	c := fromBuildInfo(z)
	if c.Commit != "0123456789abcdef0123" || !c.Modified || c.CommitTime != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected %+v", c)
	}
	if got := c.Short(); got != "0123456789ab-dirty" {
		t.Fatalf("got %s", got)
	}
	if !strings.Contains(c.String(), "modified after that commit") {
		t.Fatalf("got %s", c)
	}

	c.Version = "v1.2.0"
	if got := c.Short(); got != "v1.2.0" {
		t.Fatalf("got %s", got)
	}

	if got := (CompileInfo{}).Short(); got != "devel" {
		t.Fatalf("got %s", got)
	}
}
