package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun(t *testing.T) {
	goodTemplates := `templates:
  - id: bridge
    type: normal
    difficulty: easy
    seed: A rickety bridge.
`
	goodEnemies := `enemies:
  - type: bandit
    name: Bandit
    hp: 30
    attack: 5
`

	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut []string
	}{
		{name: "defaults", args: nil, wantOut: []string{"Built-in tables are valid"}},
		{name: "bad arg count", args: []string{"templates"}, wantErr: "bad arguments"},
		{
			name:    "templates with coverage gaps",
			args:    []string{"templates", writeFile(t, "t.yaml", goodTemplates)},
			wantOut: []string{"valid! (1 templates)", "warning: no combat templates at hard difficulty"},
		},
		{
			name:    "unknown template field",
			args:    []string{"templates", writeFile(t, "t.yaml", goodTemplates+"    mood: grim\n")},
			wantErr: "failed to decode templates",
		},
		{
			name:    "enemies",
			args:    []string{"enemies", writeFile(t, "e.yml", goodEnemies)},
			wantOut: []string{"Enemy file is valid! (bandit)"},
		},
		{
			name:    "enemies without bandit",
			args:    []string{"enemies", writeFile(t, "e.yaml", "enemies:\n  - type: wolf\n    hp: 10\n    attack: 2\n")},
			wantErr: `must define "bandit"`,
		},
		{name: "wrong extension", args: []string{"enemies", "enemies.json"}, wantErr: ".yaml extension"},
		{name: "unknown kind", args: []string{"spells", writeFile(t, "s.yaml", "")}, wantErr: "bad arguments"},
		{name: "missing file", args: []string{"enemies", "/nonexistent/e.yaml"}, wantErr: "failed to open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, &out)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out.String(), want)
			}
		})
	}
}
