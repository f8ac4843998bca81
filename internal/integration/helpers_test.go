package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/runtime-bootstrap/internal/config"
	"github.com/oshokin/runtime-bootstrap/internal/service/extractor/extractortest"
)

// runtimeScript is a fake runtime: it logs which module it was asked to run
// and fails the entry point with status 7.
const runtimeScript = `#!/bin/sh
echo "$2" >> "$(dirname "$0")/calls.log"
case "$2" in
pip) exit 0 ;;
*) exit 7 ;;
esac
`

// mirrors serves archives under per-mirror path prefixes and counts requests.
type mirrors struct {
	*httptest.Server

	mu     sync.Mutex
	hits   map[string]int
	bodies map[string][]byte
}

func startMirrors(t *testing.T) *mirrors {
	t.Helper()

	m := &mirrors{
		hits:   make(map[string]int),
		bodies: make(map[string][]byte),
	}

	// A bare handler keeps the embedded "http://" of mirrored URLs intact.
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

		m.mu.Lock()
		m.hits[name]++
		body, ok := m.bodies[name]
		m.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(body)
	}))
	t.Cleanup(m.Close)

	return m
}

func (m *mirrors) serve(name string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bodies[name] = body
}

func (m *mirrors) hitCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.hits[name]
}

func (m *mirrors) prefix(name string) string {
	return m.URL + "/" + name + "/"
}

func (m *mirrors) suffix() string {
	return m.URL + "/origin/package.zip"
}

// writeSettings saves a configuration pointing at the test mirrors and loads it back.
func writeSettings(t *testing.T, dir string, m *mirrors, mutate func(cfg *config.Config)) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Mirrors = []string{m.prefix("m1"), m.prefix("m2"), m.prefix("m3"), ""}
	cfg.ArtifactSuffix = m.suffix()
	cfg.TargetDir = filepath.Join(dir, "ncatbot")
	cfg.DownloadDir = filepath.Join(dir, "downloads")
	cfg.RuntimeExecutable = "python/bin/python3"
	cfg.Transports = []string{config.TransportHTTP}
	cfg.Timeout = 5 * time.Second
	cfg.RetryInterval = time.Millisecond

	if mutate != nil {
		mutate(cfg)
	}

	require.NoError(t, os.MkdirAll(cfg.DownloadDir, 0o755))

	path := filepath.Join(dir, config.DefaultConfigFilename)
	require.NoError(t, config.Save(path, cfg))

	loaded, err := config.Load(path)
	require.NoError(t, err)

	return loaded
}

func runtimeArchive(t *testing.T) []byte {
	t.Helper()

	return extractortest.Build(t,
		extractortest.Entry{Name: "package/"},
		extractortest.Entry{Name: "package/bin/python3", Body: runtimeScript, Mode: 0o755},
		extractortest.Entry{Name: "package/lib/site.py", Body: "print('site')\n"},
	)
}

func readCalls(t *testing.T, cfg *config.Config) []string {
	t.Helper()

	contents, err := os.ReadFile(filepath.Join(filepath.Dir(cfg.RuntimePath()), "calls.log"))
	require.NoError(t, err)

	return strings.Fields(string(contents))
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
