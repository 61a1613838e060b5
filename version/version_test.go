package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withVersionVars temporarily sets version variables and restores them after the test.
func withVersionVars(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := version, gitCommit, buildDate
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origDate
	})
	version, gitCommit, buildDate = v, commit, date
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}

func TestGetVersion_NonDev(t *testing.T) {
	withVersionVars(t, "1.0.0", "", "")
	assert.Equal(t, "1.0.0", GetVersion())
}

func TestGetVersionInfo(t *testing.T) {
	withVersionVars(t, "1.2.3", "abc1234", "2025-06-01")
	info := GetVersionInfo()
	assert.True(t, strings.HasPrefix(info, "mediasession version 1.2.3"))
	assert.Contains(t, info, "commit: abc1234")
	assert.Contains(t, info, "built: 2025-06-01")
}

func TestGetBuildInfo(t *testing.T) {
	withVersionVars(t, "1.2.3", "abc1234", "")
	attrs := GetBuildInfo()
	assert.Equal(t, []any{"version", "1.2.3", "commit", "abc1234"}, attrs)
}

func TestSatisfiesConstraint(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		constraint string
		want       bool
	}{
		{"dev always passes", devVersion, ">= 9.0.0", true},
		{"satisfied", "0.4.1", ">= 0.3.0", true},
		{"v prefix", "v0.4.1", "^0.4.0", true},
		{"too old", "0.2.0", ">= 0.3.0", false},
		{"pseudo-version", "v0.0.0-20250601120000-abcdef123456", ">= 1.0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withVersionVars(t, tt.version, "", "")
			ok, err := SatisfiesConstraint(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestSatisfiesConstraint_Invalid(t *testing.T) {
	_, err := SatisfiesConstraint("not a constraint")
	assert.Error(t, err)

	withVersionVars(t, "banana", "", "")
	_, err = SatisfiesConstraint(">= 1.0.0")
	assert.Error(t, err)
}
