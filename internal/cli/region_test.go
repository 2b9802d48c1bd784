package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/decayregion/internal/world"
)

func TestParsePos(t *testing.T) {
	got, err := parsePos("1, -2,3")
	if err != nil {
		t.Fatalf("parsePos: %v", err)
	}
	if want := (world.Pos{X: 1, Y: -2, Z: 3}); got != want {
		t.Errorf("parsePos = %v, want %v", got, want)
	}

	for _, bad := range []string{"", "1,2", "1,2,3,4", "a,b,c"} {
		if _, err := parsePos(bad); err == nil {
			t.Errorf("parsePos(%q) succeeded", bad)
		}
	}
}

func TestRegionPathEscapes(t *testing.T) {
	if got := regionPath("Arena", ""); got != "/api/regions/Arena" {
		t.Errorf("regionPath = %q", got)
	}
	if got := regionPath("a b", "reset"); got != "/api/regions/a%20b/reset" {
		t.Errorf("regionPath = %q", got)
	}
}

func TestRegionRenameCommand(t *testing.T) {
	var gotPath, gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"Pit"}`))
	}))
	defer ts.Close()
	t.Setenv("DECAYREGION_URL", ts.URL)

	if err := regionRenameCmd.RunE(regionRenameCmd, []string{"arena", "Pit"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/api/regions/arena/rename" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestRegionCommandReportsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"region not found"}`))
	}))
	defer ts.Close()
	t.Setenv("DECAYREGION_URL", ts.URL)

	if err := regionInfoCmd.RunE(regionInfoCmd, []string{"missing"}); err == nil {
		t.Fatal("info on missing region succeeded")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	if !strings.HasPrefix(out.String(), "decayregion "+VersionString()) {
		t.Errorf("version output = %q", out.String())
	}
}
