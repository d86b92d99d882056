package gcs

import (
	"testing"

	appconfig "github.com/plugin-registry/plugin-registry/internal/config"
)

// ---------------------------------------------------------------------------
// New() constructor validation (no GCS connection required)
// ---------------------------------------------------------------------------

func TestNew_MissingBucket(t *testing.T) {
	if _, err := New(&appconfig.GCSStorageConfig{}); err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestNew_EmulatorEndpoint(t *testing.T) {
	s, err := New(&appconfig.GCSStorageConfig{
		Bucket:   "archives",
		Endpoint: "http://localhost:4443/storage/v1/",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	if s.bucket != "archives" {
		t.Errorf("bucket = %q, want archives", s.bucket)
	}
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.GCSStorageConfig
		want int
	}{
		{"adc", appconfig.GCSStorageConfig{Bucket: "b"}, 0},
		{"json credentials", appconfig.GCSStorageConfig{Bucket: "b", CredentialsJSON: "{}"}, 1},
		{"credentials file", appconfig.GCSStorageConfig{Bucket: "b", CredentialsFile: "/etc/gcs.json"}, 1},
		{"emulator", appconfig.GCSStorageConfig{Bucket: "b", Endpoint: "http://localhost:4443"}, 2},
		{"endpoint with credentials", appconfig.GCSStorageConfig{Bucket: "b", Endpoint: "http://x", CredentialsFile: "/f"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if got := len(clientOptions(&cfg)); got != tt.want {
				t.Errorf("clientOptions() len = %d, want %d", got, tt.want)
			}
		})
	}
}
