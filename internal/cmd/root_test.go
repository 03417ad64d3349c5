package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipyardlabs/cargohold/pkg/authz"
	"github.com/shipyardlabs/cargohold/pkg/jobstore"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func setTestStore(t *testing.T) {
	t.Helper()
	t.Setenv("CARGOHOLD_STORE_PATH", filepath.Join(t.TempDir(), "jobs.db"))
	t.Setenv("CARGOHOLD_LOGGING_LEVEL", "error")
}

func TestWorkerArgs(t *testing.T) {
	cfgFile = ""
	assert.Equal(t, []string{"worker", "--drain"}, workerArgs())

	cfgFile = "/etc/cargohold.yaml"
	defer func() { cfgFile = "" }()
	assert.Equal(t,
		[]string{"worker", "--drain", "--config", "/etc/cargohold.yaml"},
		workerArgs())
}

func TestJobsListEmptyStore(t *testing.T) {
	setTestStore(t)

	out, err := execute(t, "jobs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "JOB ID")
}

func TestJobsStatusUnknownJob(t *testing.T) {
	setTestStore(t)

	_, err := execute(t, "jobs", "status", "b5ab5dc2-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, jobstore.ErrNotFound)
}

func TestTokenCommandIssuesVerifiableToken(t *testing.T) {
	setTestStore(t)
	t.Setenv("CARGOHOLD_AUTH_SECRET", "test-secret")

	out, err := execute(t, "token", "--subject", "ops-1", "--admin", "--ttl", "1m")
	require.NoError(t, err)

	auth, err := authz.NewJWTAuthenticator("test-secret")
	require.NoError(t, err)

	principal, err := auth.Authenticate(trimOutput(out))
	require.NoError(t, err)
	assert.Equal(t, "ops-1", principal.ID)
	assert.True(t, principal.Admin)
}

func trimOutput(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
