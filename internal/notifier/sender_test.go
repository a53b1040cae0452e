package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/prayanswer/internal/constants"
)

type mockProcess struct {
	pid        int
	executable string
}

func (m *mockProcess) Pid() int           { return m.pid }
func (m *mockProcess) PPid() int          { return 0 }
func (m *mockProcess) Executable() string { return m.executable }

func mockConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := userConfigDirFunc
	t.Cleanup(func() { userConfigDirFunc = old })
	userConfigDirFunc = func() (string, error) { return dir, nil }
	return dir
}

func mockProcessLookup(t *testing.T, executable string) {
	t.Helper()
	old := findProcessFunc
	t.Cleanup(func() { findProcessFunc = old })
	findProcessFunc = func(pid int) (ps.Process, error) {
		if executable == "" {
			return nil, nil
		}
		return &mockProcess{pid: pid, executable: executable}, nil
	}
}

func TestTrayConfigDir(t *testing.T) {
	base := mockConfigDir(t)
	identifier := constants.TrayAppIdentifier

	dir, err := TrayConfigDir(identifier)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(base, identifier); dir != want {
		t.Errorf("expected %s, got %s", want, dir)
	}

	trayDir := filepath.Join(base, identifier)
	if err := os.MkdirAll(trayDir, 0755); err != nil {
		t.Fatal(err)
	}
	custom := "/custom/lock/dir"
	settings := fmt.Sprintf(`{"settings": {"lockfile_dir": %q}}`, custom)
	if err := os.WriteFile(filepath.Join(trayDir, "settings.json"), []byte(settings), 0644); err != nil {
		t.Fatal(err)
	}

	dir, err = TrayConfigDir(identifier)
	if err != nil {
		t.Fatal(err)
	}
	if dir != custom {
		t.Errorf("expected %s, got %s", custom, dir)
	}
}

func TestReadLockfile(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		executable string
		wantErr    bool
	}{
		{"valid", "8080|123|s3cret", constants.TrayExecutablePrefix, false},
		{"two parts", "8080|123", constants.TrayExecutablePrefix, true},
		{"bad port", "http|123|s", constants.TrayExecutablePrefix, true},
		{"port out of range", "70000|123|s", constants.TrayExecutablePrefix, true},
		{"bad pid", "8080|abc|s", constants.TrayExecutablePrefix, true},
		{"empty secret", "8080|123| ", constants.TrayExecutablePrefix, true},
		{"process gone", "8080|123|s", "", true},
		{"wrong process", "8080|123|s", "bash", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockProcessLookup(t, tt.executable)
			path := filepath.Join(t.TempDir(), constants.NotifierLockfileName)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			port, secret, err := readLockfile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readLockfile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (port != "8080" || secret != "s3cret") {
				t.Errorf("unexpected port/secret %q %q", port, secret)
			}
		})
	}

	if _, _, err := readLockfile(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, ErrTrayNotRunning) {
		t.Errorf("expected ErrTrayNotRunning for missing lockfile, got %v", err)
	}
}

func TestTraySenderSend(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(constants.NotificationSecretHeader) != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	base := mockConfigDir(t)
	mockProcessLookup(t, constants.TrayExecutablePrefix)
	trayDir := filepath.Join(base, constants.TrayAppIdentifier)
	if err := os.MkdirAll(trayDir, 0755); err != nil {
		t.Fatal(err)
	}
	lock := fmt.Sprintf("%s|4242|s3cret", u.Port())
	if err := os.WriteFile(filepath.Join(trayDir, constants.NotifierLockfileName), []byte(lock), 0644); err != nil {
		t.Fatal(err)
	}

	sender := NewTraySender("")
	if err := sender.Send("기도 알림", "body text"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.Title != "기도 알림" || got.Text != "body text" || got.DurationMs != constants.NotificationDurationMs {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestTraySenderNotRunning(t *testing.T) {
	mockConfigDir(t)
	if err := NewTraySender("").Send("t", "b"); !errors.Is(err, ErrTrayNotRunning) {
		t.Errorf("expected ErrTrayNotRunning, got %v", err)
	}
}
