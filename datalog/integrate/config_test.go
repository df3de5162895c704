package integrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    Config
		wantErr string
	}{
		{
			name: "defaults",
			yaml: "",
			want: DefaultConfig(),
		},
		{
			name: "topk",
			yaml: "provenance: topkproofs\nk: 5\ndisjunctions: true\nincremental: true\nworkers: 4\nmax_iterations: 100\n",
			want: Config{Provenance: "topkproofs", K: 5, Disjunctions: true, Incremental: true, Workers: 4, MaxIterations: 100},
		},
		{
			name: "fact log",
			yaml: "provenance: minmaxprob\nfact_log: /var/lib/facts\n",
			want: Config{Provenance: "minmaxprob", K: 3, Workers: 1, FactLog: "/var/lib/facts"},
		},
		{
			name:    "unknown provenance",
			yaml:    "provenance: fuzzy\n",
			wantErr: `unknown provenance "fuzzy"`,
		},
		{
			name:    "bad k",
			yaml:    "provenance: topkproofs\nk: 0\n",
			wantErr: "topkproofs needs k > 0",
		},
		{
			name:    "negative workers",
			yaml:    "workers: -2\n",
			wantErr: "workers must not be negative",
		},
		{
			name:    "malformed",
			yaml:    "provenance: [unit\n",
			wantErr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provenance: topkproofs\nk: 2\nworkers: 3\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.TopKProofs().K())

	var o Options
	for _, opt := range cfg.Options() {
		opt(&o)
	}
	assert.Equal(t, 3, o.Workers)
	assert.Zero(t, o.MaxIterations)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
