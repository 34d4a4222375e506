package runner

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"checkup/internal/conf"
	"checkup/internal/diag"
	"checkup/internal/proc"
)

const stubReport = `{
  "totals": {"errors": 0, "file_errors": 3},
  "files": {
    "src/a.php": {
      "errors": 2,
      "messages": [
        {"message": "Undefined variable $foo", "line": 3, "ignorable": true},
        {"message": "Undefined variable $bar", "line": 9, "ignorable": true}
      ]
    },
    "src/b.php": {
      "errors": 1,
      "messages": [
        {"message": "Call to unknown method", "line": 4, "ignorable": true}
      ]
    }
  },
  "errors": []
}`

type diagnosticsRecorder struct {
	mu    sync.Mutex
	files map[string]int
}

func (r *diagnosticsRecorder) Status(string)      {}
func (r *diagnosticsRecorder) RequireLogin()      {}
func (r *diagnosticsRecorder) PortDiscovered(int) {}
func (r *diagnosticsRecorder) Diagnostics(file string, diags []diag.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.files == nil {
		r.files = make(map[string]int)
	}
	r.files[file] = len(diags)
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// writeStubAnalyzer creates a script that prints the canned report and exits
// with the findings exit code.
func writeStubAnalyzer(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "analyzer.sh")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stubReport + "\nEOF\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newRunner(t *testing.T) (*Runner, *diagnosticsRecorder) {
	t.Helper()
	reg := conf.NewRegistry(quietLogger())
	t.Cleanup(reg.Close)
	rec := &diagnosticsRecorder{}
	return &Runner{
		Binary:   writeStubAnalyzer(t, t.TempDir()),
		Registry: reg,
		Notifier: rec,
		Logger:   quietLogger(),
	}, rec
}

func TestCheckFiltersAndNotifies(t *testing.T) {
	workDir := t.TempDir()
	config := `
parameters:
  ignoreErrors:
    - message: "Undefined variable"
      count: 1
`
	if err := os.WriteFile(filepath.Join(workDir, "checkup.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	r, rec := newRunner(t)
	res, err := r.Check(context.Background(), workDir, nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	// Quota of one: the first matching diagnostic is suppressed, the second
	// survives, b.php is untouched.
	if res.Suppressed != 1 {
		t.Errorf("Suppressed = %d, want 1", res.Suppressed)
	}
	if got := len(res.Files["src/a.php"]); got != 1 {
		t.Errorf("src/a.php kept %d diagnostics, want 1", got)
	}
	if res.Files["src/a.php"][0].Message != "Undefined variable $bar" {
		t.Errorf("survivor = %q", res.Files["src/a.php"][0].Message)
	}
	if got := len(res.Files["src/b.php"]); got != 1 {
		t.Errorf("src/b.php kept %d diagnostics, want 1", got)
	}
	if res.Total() != 2 {
		t.Errorf("Total = %d, want 2", res.Total())
	}

	rec.mu.Lock()
	if rec.files["src/a.php"] != 1 || rec.files["src/b.php"] != 1 {
		t.Errorf("notified files = %v", rec.files)
	}
	rec.mu.Unlock()
}

func TestCheckQuotasDoNotLeakAcrossPasses(t *testing.T) {
	workDir := t.TempDir()
	config := `
parameters:
  ignoreErrors:
    - message: "Undefined variable"
      count: 1
`
	if err := os.WriteFile(filepath.Join(workDir, "checkup.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	r, _ := newRunner(t)
	first, err := r.Check(context.Background(), workDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Check(context.Background(), workDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Suppressed != second.Suppressed {
		t.Errorf("suppressed drifted across passes: %d then %d",
			first.Suppressed, second.Suppressed)
	}
}

func TestCheckWithoutConfigDegrades(t *testing.T) {
	workDir := t.TempDir() // no config file

	r, _ := newRunner(t)
	res, err := r.Check(context.Background(), workDir, nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Suppressed != 0 {
		t.Errorf("Suppressed = %d, want 0 without rules", res.Suppressed)
	}
	if res.Total() != 3 {
		t.Errorf("Total = %d, want 3", res.Total())
	}
}

func TestCheckPathScopedRules(t *testing.T) {
	workDir := t.TempDir()
	config := `
parameters:
  ignoreErrors:
    - message: "Undefined variable"
      paths: [src/a]
    - message: "unknown method"
      path: elsewhere/
`
	if err := os.WriteFile(filepath.Join(workDir, "checkup.yml"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	r, _ := newRunner(t)
	res, err := r.Check(context.Background(), workDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(res.Files["src/a.php"]); got != 0 {
		t.Errorf("src/a.php kept %d, want 0 (in-scope rule)", got)
	}
	if got := len(res.Files["src/b.php"]); got != 1 {
		t.Errorf("src/b.php kept %d, want 1 (out-of-scope rule)", got)
	}
}

func TestCheckSpawnError(t *testing.T) {
	workDir := t.TempDir()
	reg := conf.NewRegistry(quietLogger())
	t.Cleanup(reg.Close)
	r := &Runner{
		Binary:   "/definitely/not/here",
		Registry: reg,
		Logger:   quietLogger(),
	}

	_, err := r.Check(context.Background(), workDir, nil)
	var spawnErr *proc.SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("err = %v, want *SpawnError", err)
	}
}

func TestCheckGarbageOutput(t *testing.T) {
	workDir := t.TempDir()
	stub := filepath.Join(t.TempDir(), "broken.sh")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho not-json\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	reg := conf.NewRegistry(quietLogger())
	t.Cleanup(reg.Close)
	r := &Runner{Binary: stub, Registry: reg, Logger: quietLogger()}

	if _, err := r.Check(context.Background(), workDir, nil); err == nil {
		t.Fatal("expected error for unparseable output")
	}
}
