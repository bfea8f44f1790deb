package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v1.2.3", "1.2.3"},
		{"1.2.3-beta1", "1.2.3"},
		{"  v2.0  ", "2.0"},
		{"dev", ""},
	}
	for _, tc := range tests {
		if got := normalizeVersion(tc.input); got != tc.want {
			t.Errorf("normalizeVersion(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b    string
		wantCmp int
		wantOK  bool
	}{
		{"1.2", "1.2.0", 0, true},
		{"1.2.3", "1.10.0", -1, true},
		{"2.0", "1.9.9", 1, true},
		{"1.a", "1.2.3", 0, false},
	}
	for _, tc := range tests {
		cmp, ok := compareVersions(tc.a, tc.b)
		if ok != tc.wantOK {
			t.Errorf("compareVersions(%q, %q) ok = %v, want %v", tc.a, tc.b, ok, tc.wantOK)
			continue
		}
		if ok && cmp != tc.wantCmp {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tc.a, tc.b, cmp, tc.wantCmp)
		}
	}
}

func TestCheckForUpdateViaRedirect(t *testing.T) {
	t.Setenv(TestEnvVar, "")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/NForce-ai/SDRbot/releases/tag/v9.9.9", http.StatusFound)
	}))
	defer server.Close()
	old := releaseBaseURL
	releaseBaseURL = server.URL
	defer func() { releaseBaseURL = old }()

	latest, releaseURL, ok := CheckForUpdate(context.Background(), "1.0.0")
	if !ok {
		t.Fatal("expected an update to be reported")
	}
	if latest != "v9.9.9" {
		t.Errorf("latest = %q", latest)
	}
	if releaseURL == "" {
		t.Error("expected a release URL")
	}

	if _, _, ok := CheckForUpdate(context.Background(), "9.9.9"); ok {
		t.Error("current version must not report an update")
	}
}

func TestCheckForUpdateDevBuildSkipped(t *testing.T) {
	t.Setenv(TestEnvVar, "")
	if _, _, ok := CheckForUpdate(context.Background(), "dev"); ok {
		t.Error("dev builds must never report an update")
	}
}

func TestCheckForUpdateSilentOnError(t *testing.T) {
	t.Setenv(TestEnvVar, "")
	old := releaseBaseURL
	releaseBaseURL = "http://127.0.0.1:1"
	defer func() { releaseBaseURL = old }()

	if _, _, ok := CheckForUpdate(context.Background(), "1.0.0"); ok {
		t.Error("network failure must report no update")
	}
}
