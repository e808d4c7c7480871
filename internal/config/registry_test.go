package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/elektronisch/go2n/pkg/twon"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "go2n") {
		t.Errorf("GetConfigDir() = %v, should contain 'go2n'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin":
		if !strings.Contains(configDir, ".config") {
			t.Errorf("macOS config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-test")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != filepath.Join("/tmp/xdg-test", "go2n") {
		t.Errorf("GetConfigDir() = %v, want /tmp/xdg-test/go2n", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("NewRegistry().Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("NewRegistry().Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("NewRegistry().Preferences should not be nil")
	}
	if reg.Preferences.DiscoverTimeout != 5 {
		t.Errorf("DiscoverTimeout = %v, want 5", reg.Preferences.DiscoverTimeout)
	}
	if reg.Preferences.DefaultAuth != "basic" {
		t.Errorf("DefaultAuth = %v, want basic", reg.Preferences.DefaultAuth)
	}
}

func TestRegistrySetDevice(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		device  *Device
		wantErr bool
	}{
		{"minimal", "door", &Device{Host: "10.0.0.5"}, false},
		{"with account", "door", &Device{Host: "10.0.0.5", Username: "api", AuthMethod: "digest"}, false},
		{"https", "door", &Device{Host: "door.local", Protocol: "https", TLSVerify: true}, false},
		{"missing name", "", &Device{Host: "10.0.0.5"}, true},
		{"missing host", "door", &Device{}, true},
		{"bad protocol", "door", &Device{Host: "10.0.0.5", Protocol: "gopher"}, true},
		{"bad auth", "door", &Device{Host: "10.0.0.5", AuthMethod: "kerberos"}, true},
		{"url as host", "door", &Device{Host: "http://10.0.0.5"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			err := reg.SetDevice(tt.profile, tt.device)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetDevice() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && reg.GetDevice(tt.profile) != tt.device {
				t.Error("SetDevice() did not store the profile")
			}
		})
	}
}

func TestRegistryRemoveDeviceAndNames(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"gate", "door", "garage"} {
		if err := reg.SetDevice(name, &Device{Host: "10.0.0.5"}); err != nil {
			t.Fatalf("SetDevice(%s) error = %v", name, err)
		}
	}

	got := strings.Join(reg.Names(), ",")
	if got != "door,garage,gate" {
		t.Errorf("Names() = %v, want door,garage,gate", got)
	}

	if !reg.RemoveDevice("garage") {
		t.Error("RemoveDevice(garage) = false, want true")
	}
	if reg.RemoveDevice("garage") {
		t.Error("RemoveDevice(garage) twice = true, want false")
	}
	if len(reg.Names()) != 2 {
		t.Errorf("Names() has %d entries, want 2", len(reg.Names()))
	}
}

func TestRegistryMarkSeen(t *testing.T) {
	reg := NewRegistry()
	_ = reg.SetDevice("door", &Device{Host: "10.0.0.5"})

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reg.MarkSeen("door", "54-1234-5678", "2N IP Verso", at)
	reg.MarkSeen("unknown", "x", "y", at)

	device := reg.GetDevice("door")
	if device.Serial != "54-1234-5678" || device.Model != "2N IP Verso" || !device.LastSeen.Equal(at) {
		t.Errorf("MarkSeen() stored %+v", device)
	}
	if reg.GetDevice("unknown") != nil {
		t.Error("MarkSeen() must not create profiles")
	}
}

func TestDeviceConnectionOptions(t *testing.T) {
	device := &Device{
		Host:           "door.local",
		Protocol:       "https",
		Username:       "api",
		AuthMethod:     "digest",
		Unprivileged:   true,
		TimeoutSeconds: 3,
	}

	opts, err := device.ConnectionOptions("secret", nil)
	if err != nil {
		t.Fatalf("ConnectionOptions() error = %v", err)
	}
	if opts.BaseURL() != "https://door.local" {
		t.Errorf("BaseURL() = %v", opts.BaseURL())
	}
	if opts.AuthMethod() != twon.AuthDigest {
		t.Errorf("AuthMethod() = %v, want digest", opts.AuthMethod())
	}
	if !opts.HasCredentials() || !opts.Unprivileged() {
		t.Errorf("ConnectionOptions() = %v", opts)
	}
	if opts.Timeout() != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", opts.Timeout())
	}

	if _, err := device.ConnectionOptions("", nil); err == nil {
		t.Error("ConnectionOptions() without password should fail for a profile with a username")
	}
}

func TestDeviceConnectionOptions_Preferences(t *testing.T) {
	prefs := &Preferences{DefaultUsername: "admin", DefaultAuth: "digest"}
	device := &Device{Host: "10.0.0.5"}

	opts, err := device.ConnectionOptions("pw", prefs)
	if err != nil {
		t.Fatalf("ConnectionOptions() error = %v", err)
	}
	if opts.Username() != "admin" || opts.AuthMethod() != twon.AuthDigest {
		t.Errorf("ConnectionOptions() ignored preferences: %v", opts)
	}
	if device.Username != "" {
		t.Error("ConnectionOptions() must not modify the profile")
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg := NewRegistry()
	if err := reg.SetDevice("door", &Device{Host: "10.0.0.5", Username: "api", AuthMethod: "digest"}); err != nil {
		t.Fatalf("SetDevice() error = %v", err)
	}
	reg.MarkSeen("door", "54-1234-5678", "2N IP Verso", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# go2n configuration file") {
		t.Error("saved file is missing the header comment")
	}
	if strings.Contains(string(data), "password:") {
		t.Error("saved file must not contain passwords")
	}

	loaded, err := LoadRegistryFile(path)
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	device := loaded.GetDevice("door")
	if device == nil {
		t.Fatal("profile missing after reload")
	}
	if device.Host != "10.0.0.5" || device.Username != "api" || device.Serial != "54-1234-5678" {
		t.Errorf("reloaded profile = %+v", device)
	}
}

func TestLoadRegistryFile_Missing(t *testing.T) {
	reg, err := LoadRegistryFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	if reg.Version != 1 || reg.Preferences == nil {
		t.Errorf("LoadRegistryFile() = %+v, want defaults", reg)
	}
}

func TestLoadRegistryFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"wrong version", "version: 2\n"},
		{"not yaml", "version: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRegistryFile(path); err == nil {
				t.Error("LoadRegistryFile() error = nil, want error")
			}
		})
	}
}

func TestLoadRegistryFile_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistryFile(path)
	if err != nil {
		t.Fatalf("LoadRegistryFile() error = %v", err)
	}
	if reg.Devices == nil || reg.Preferences == nil {
		t.Errorf("LoadRegistryFile() = %+v, want initialized maps and preferences", reg)
	}
}

func TestLoadRegistry_DefaultPath(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	reg := NewRegistry()
	_ = reg.SetDevice("gate", &Device{Host: "10.0.0.9"})
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadRegistry()
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	if loaded.GetDevice("gate") == nil {
		t.Error("LoadRegistry() did not read the saved profile")
	}
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}
