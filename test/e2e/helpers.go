package e2e

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
)

// runOnAllConfigs is a helper that runs a test on all configurations
func runOnAllConfigs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	for _, config := range AllConfigurations() {
		t.Run(config.Name, func(t *testing.T) {
			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// runOnS3Configs runs a test on the S3 configurations, skipping when
// Localstack is unreachable.
func runOnS3Configs(t *testing.T, testFunc func(t *testing.T, tc *TestContext)) {
	t.Helper()

	helper := NewLocalstackHelper(t)
	if !helper.Available() {
		t.Skip("Localstack not available, skipping S3 tests")
	}
	defer helper.Cleanup()

	for _, config := range S3Configurations() {
		t.Run(config.Name, func(t *testing.T) {
			SetupS3Config(t, config, helper)

			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			testFunc(t, tc)
		})
	}
}

// upload stores data at path and fails the test on error.
func (tc *TestContext) upload(t *testing.T, ns uuid.UUID, path string, data []byte) {
	t.Helper()
	if err := tc.Client.Upload(tc.ctx, ns, path, bytes.NewReader(data), uint64(len(data))); err != nil {
		t.Fatalf("Upload(%s) failed: %v", path, err)
	}
}

// download fetches path and fails the test on error.
func (tc *TestContext) download(t *testing.T, ns uuid.UUID, path string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := tc.Client.Download(tc.ctx, ns, path, &buf); err != nil {
		t.Fatalf("Download(%s) failed: %v", path, err)
	}
	return buf.Bytes()
}

// totalSize reads the namespace's stored total_size directly from the service.
func (tc *TestContext) totalSize(t *testing.T, ns uuid.UUID) uint64 {
	t.Helper()
	row, err := tc.Service.GetNamespace(tc.ctx, ns)
	if err != nil {
		t.Fatalf("GetNamespace failed: %v", err)
	}
	return row.TotalSize
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read failed: %v", err)
	}
	return b
}
