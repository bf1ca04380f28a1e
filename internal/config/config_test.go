package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  string
		validate func(*testing.T, *Config)
	}{
		{
			name: "valid single profile",
			content: `
profiles:
  prod:
    base_url: https://search.example.com:8089
    token: abc123
`,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "prod", cfg.DefaultProfile, "a lone profile becomes the default")
				p := cfg.Profiles["prod"]
				require.NotNil(t, p)
				assert.Equal(t, "https://search.example.com:8089", p.BaseURL)
				assert.Equal(t, "abc123", p.Token)
				assert.Equal(t, 30*time.Second, p.Timeout.Std())
			},
		},
		{
			name: "multiple profiles with explicit default",
			content: `
default_profile: staging
profiles:
  prod:
    base_url: https://prod:8089
    token: t1
  staging:
    base_url: https://staging:8089
    username: admin
    password: changeme
    skip_tls_verify: true
    timeout: 10s
    max_retries: 5
`,
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "staging", cfg.DefaultProfile)

				p := cfg.Profiles["staging"]
				require.NotNil(t, p)
				assert.Equal(t, "admin", p.Username)
				assert.True(t, p.SkipTLSVerify)
				assert.Equal(t, 10*time.Second, p.Timeout.Std())
				assert.Equal(t, 5, p.MaxRetries)
			},
		},
		{
			name: "no profiles",
			content: `
default_profile: prod
`,
			wantErr: "at least one profile is required",
		},
		{
			name: "default names unknown profile",
			content: `
default_profile: nope
profiles:
  prod:
    base_url: https://prod:8089
    token: t1
`,
			wantErr: `default_profile "nope" is not a defined profile`,
		},
		{
			name: "missing base_url",
			content: `
profiles:
  prod:
    token: t1
`,
			wantErr: "profile prod: base_url is required",
		},
		{
			name: "missing credentials",
			content: `
profiles:
  prod:
    base_url: https://prod:8089
    username: admin
`,
			wantErr: "either token or username/password is required",
		},
		{
			name: "bad duration",
			content: `
profiles:
  prod:
    base_url: https://prod:8089
    token: t1
    timeout: 10x
`,
			wantErr: `parsing duration "10x"`,
		},
		{
			name:    "invalid YAML",
			content: `profiles: [not: a: map`,
			wantErr: "parsing config YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_TokenFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("from-file\n"), 0o600))

	cfg, err := Load(writeConfig(t, `
profiles:
  prod:
    base_url: https://prod:8089
    token_file: `+tokenPath+`
`))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Profiles["prod"].Token, "token is read from file and trimmed")
}

func TestConfig_Profile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
default_profile: prod
profiles:
  prod:
    base_url: https://prod:8089
    token: t1
  dev:
    base_url: https://dev:8089
    token: t2
`))
	require.NoError(t, err)

	p, name, err := cfg.Profile("")
	require.NoError(t, err)
	assert.Equal(t, "prod", name)
	assert.Equal(t, "t1", p.Token)

	p, name, err = cfg.Profile("dev")
	require.NoError(t, err)
	assert.Equal(t, "dev", name)
	assert.Equal(t, "t2", p.Token)

	_, _, err = cfg.Profile("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `profile "missing" not found`)
}

func TestConfig_ProfileNames(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
profiles:
  zulu:
    base_url: https://z:8089
    token: t
  alpha:
    base_url: https://a:8089
    token: t
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zulu"}, cfg.ProfileNames())
}

func TestExpandTilde(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		input string
		want  string
	}{
		{"~", homeDir},
		{"~/foo/bar", filepath.Join(homeDir, "foo/bar")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"/path/~/file", "/path/~/file"},
	}

	for _, tt := range tests {
		got, err := expandTilde(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
