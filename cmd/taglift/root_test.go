package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ramkansal/taglift/internal/config"
	"github.com/ramkansal/taglift/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const savedProfile = `<html><body><main>
  <h1 class="text-heading-xlarge">Jane Doe</h1>
  <div class="text-body-medium break-words">Staff Engineer at Example Corp</div>
  <span class="text-body-small inline t-black--light break-words">Berlin, Germany</span>
  <div role="dialog" class="artdeco-modal">
    <section class="pv-contact-info">
      <a href="mailto:jane@example.com">jane@example.com</a>
    </section>
  </div>
</main></body></html>`

func testApp(apiBase string) *app {
	return newApp(&config.Config{
		API:        config.APIConfig{BaseURL: apiBase, MaxAttempts: 1},
		Credential: config.CredentialConfig{Backend: "memory"},
	}, nil)
}

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(a)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"-q", "--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, testApp(""), "version")
	require.NoError(t, err)
	assert.Equal(t, "taglift v"+version+"\n", out)
}

func TestExtractCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane.html")
	require.NoError(t, os.WriteFile(path, []byte(savedProfile), 0o644))

	out, err := run(t, testApp(""), "extract", path,
		"--url", "https://www.linkedin.com/in/jane-doe/?trk=abc",
		"-t", "VIP:#ff0000", "-t", "Lead",
		"--json")
	require.NoError(t, err)

	var rec plugin.ProfileRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, "jane@example.com", rec.Email)
	assert.Equal(t, "https://www.linkedin.com/in/jane-doe/", rec.ProfileURL)
	assert.Equal(t, "offline", rec.SessionID)
	require.Len(t, rec.Tags, 2)
	assert.Equal(t, plugin.Tag{Name: "Lead", Color: "#0A66C2"}, rec.Tags[1])
}

func TestExtractCommandText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jane.html")
	require.NoError(t, os.WriteFile(path, []byte(savedProfile), 0o644))

	out, err := run(t, testApp(""), "extract", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "file://")
}

func TestExtractCommandRejectsBadTags(t *testing.T) {
	_, err := run(t, testApp(""), "extract", "missing.html", "-t", "")
	assert.Error(t, err)
}

func TestAuthCommands(t *testing.T) {
	a := testApp("")

	_, err := run(t, a, "auth", "status")
	require.Error(t, err)

	_, err = run(t, a, "auth", "set", "-u", "alice")
	require.Error(t, err)

	out, err := run(t, a, "auth", "set", "-u", "alice", "--token", "tok")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	out, err = run(t, a, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.NotContains(t, out, "tok")

	_, err = run(t, a, "auth", "clear")
	require.NoError(t, err)
	_, err = run(t, a, "auth", "status")
	assert.Error(t, err)
}

type tagAPI struct {
	mu     sync.Mutex
	status int
	calls  []string
}

func (s *tagAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	s.calls = append(s.calls, r.Method+" "+r.URL.Path+" "+string(body))
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"tags":[{"name":"VIP","color":"#ff0000"}]}`)
}

func TestTagsCommands(t *testing.T) {
	api := &tagAPI{}
	ts := httptest.NewServer(api)
	defer ts.Close()
	a := testApp(ts.URL)

	_, err := run(t, a, "tags", "list")
	require.Error(t, err)

	_, err = run(t, a, "auth", "set", "-u", "alice", "--token", "tok")
	require.NoError(t, err)

	out, err := run(t, a, "tags", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "VIP")
	assert.Contains(t, out, "#ff0000")

	_, err = run(t, a, "tags", "add", "Lead:#00ff00")
	require.NoError(t, err)
	_, err = run(t, a, "tags", "delete", "Lead")
	require.NoError(t, err)

	api.mu.Lock()
	assert.Equal(t, []string{
		"GET /tags ",
		`POST /tags {"name":"Lead","color":"#00ff00"}`,
		`DELETE /tags {"name":"Lead"}`,
	}, api.calls)
	api.mu.Unlock()
}

func TestTagsCommandClearsCredentialsOnRejection(t *testing.T) {
	api := &tagAPI{status: http.StatusUnauthorized}
	ts := httptest.NewServer(api)
	defer ts.Close()
	a := testApp(ts.URL)

	_, err := run(t, a, "auth", "set", "-u", "alice", "--token", "expired")
	require.NoError(t, err)

	_, err = run(t, a, "tags", "list")
	require.Error(t, err)

	_, err = run(t, a, "auth", "status")
	assert.Error(t, err)
}
