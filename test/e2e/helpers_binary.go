//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// trackerBackend is a fake progress server standing in for the hosted API.
type trackerBackend struct {
	srv *httptest.Server

	mu     sync.Mutex
	pushes []map[string]any
}

func startBackend(t *testing.T) *trackerBackend {
	t.Helper()
	b := &trackerBackend{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"userId":"u1","username":"e2e","email":"e2e@example.com"}`)
	})
	mux.HandleFunc("GET /api/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"username":"e2e","email":"e2e@example.com","dailyGoal":2,"progress":[]}}`)
	})
	mux.HandleFunc("PUT /api/user/{id}/progress", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.pushes = append(b.pushes, body)
		b.mu.Unlock()
		io.WriteString(w, `{"success":true}`)
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *trackerBackend) pushCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pushes)
}

func (b *trackerBackend) lastPush() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pushes) == 0 {
		return nil
	}
	return b.pushes[len(b.pushes)-1]
}

// leettrackEnv points a leettrack process at the backend and a private data directory.
type leettrackEnv struct {
	dataDir string
	backend *trackerBackend
	apiKey  string
}

func newEnv(t *testing.T, backend *trackerBackend) *leettrackEnv {
	t.Helper()
	requireLeetTrack(t)
	return &leettrackEnv{dataDir: t.TempDir(), backend: backend, apiKey: "e2e-test-api-key"}
}

func (e *leettrackEnv) environ(extra ...string) []string {
	env := append(os.Environ(),
		"LEETTRACK_API_URL="+e.backend.srv.URL+"/api",
		"LEETTRACK_CACHE_PATH="+filepath.Join(e.dataDir, "leettrack.db"),
		"LEETTRACK_CONFIG_PATH="+filepath.Join(e.dataDir, "nonexistent.yaml"),
		"LEETTRACK_ENV_FILE="+filepath.Join(e.dataDir, "nonexistent.env"),
		"LEETTRACK_API_KEY="+e.apiKey,
		"LEETTRACK_EXPORT_BUCKET=",
	)
	return append(env, extra...)
}

// cli runs a one-shot leettrack subcommand.
func (e *leettrackEnv) cli(t *testing.T, args ...string) string {
	t.Helper()
	cmd := exec.Command(leettrackBin, args...)
	cmd.Env = e.environ()
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("leettrack %v: %v\n%s", args, err, out)
	}
	return string(out)
}

// leettrackServer manages a running leettrack API process.
type leettrackServer struct {
	cmd     *exec.Cmd
	address string
	apiKey  string
	logFile string
}

func (e *leettrackEnv) serve(t *testing.T) *leettrackServer {
	t.Helper()

	port := freePort(t)
	logFile := filepath.Join(e.dataDir, "leettrack.log")

	cmd := exec.Command(leettrackBin)
	cmd.Env = e.environ(fmt.Sprintf("LEETTRACK_PORT=%d", port))

	lf, err := os.Create(logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start leettrack: %v", err)
	}

	s := &leettrackServer{
		cmd:     cmd,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		apiKey:  e.apiKey,
		logFile: logFile,
	}
	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("leettrack not healthy: %v\n%s", err, s.logs())
	}
	return s
}

// stop sends SIGINT and waits for the drain to finish.
func (s *leettrackServer) stop() error {
	if s.cmd == nil || s.cmd.Process == nil || s.cmd.ProcessState != nil {
		return nil
	}
	_ = s.cmd.Process.Signal(os.Interrupt)
	return s.cmd.Wait()
}

func (s *leettrackServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *leettrackServer) logs() string {
	data, _ := os.ReadFile(s.logFile)
	return string(data)
}

func (s *leettrackServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/api/v1/health"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("health check at %s did not succeed within %v", url, timeout)
}

// do sends an authenticated request and decodes a JSON response into out when non-nil.
func (s *leettrackServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.baseURL()+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// freePort returns a free TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
