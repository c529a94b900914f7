package e2e

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	baseURL := startDevServer(t, binaryPath, home)

	stdout, stderr, err := runSK(t, binaryPath, home, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "token: none")

	stdout, stderr, err = runSK(t, binaryPath, home, "--base-url", baseURL, "login", "-u", "smoke", "-p", "test")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "Logged in as smoke\n", stdout)

	_, stderr, err = runSK(t, binaryPath, home, "--base-url", baseURL, "post", "/items", "--data", `{"name":"smoke"}`)
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runSK(t, binaryPath, home, "--base-url", baseURL, "get", "/items")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Page 1 of 1 (1 rows)")

	stdout, stderr, err = runSK(t, binaryPath, home, "--base-url", baseURL, "logout")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Equal(t, "Logged out.\n", stdout)

	_, _, err = runSK(t, binaryPath, home, "--base-url", baseURL, "whoami")
	require.Error(t, err)
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "sk-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/sk")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build sk binary: %s", string(output))
	return binaryPath
}

// startDevServer runs `sk dev-server` on a free port and returns its API
// base URL once it is listening.
func startDevServer(t *testing.T, binaryPath, home string) string {
	t.Helper()

	cmd := exec.Command(binaryPath, "dev-server", "--addr", "127.0.0.1:0", "--user", "smoke:test")
	cmd.Env = append(os.Environ(), "HOME="+home)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Signal(os.Interrupt)
		_ = cmd.Wait()
	})

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if url, ok := strings.CutPrefix(scanner.Text(), "Serving on "); ok {
				lines <- url
				return
			}
		}
	}()

	select {
	case url := <-lines:
		return url
	case <-time.After(10 * time.Second):
		t.Fatal("dev-server did not start")
		return ""
	}
}

func runSK(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
