package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", DataDir: "d", SQLiteDBPath: "d/x.db"})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLiteBackend, DataDirectory: "d", SQLiteDBPath: "d/x.db"}, cfg)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"file", Config{Type: FileBackend, DataDirectory: "data"}, false},
		{"file without directory", Config{Type: FileBackend}, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))

	configs := []Config{
		{Type: MemoryBackend},
		{Type: FileBackend, DataDirectory: filepath.Join(dir, "files")},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "db", "budget.db")},
	}
	for _, c := range configs {
		t.Run(c.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, c)
			require.NoError(t, err)
			require.NotNil(t, res.Storage)
			require.NotNil(t, res.Cleanup)

			require.NoError(t, res.Storage.Put(ctx, "budgets", []byte("[]")))
			got, err := res.Storage.Get(ctx, "budgets")
			require.NoError(t, err)
			assert.Equal(t, "[]", string(got))
			assert.NoError(t, res.Cleanup())
		})
	}

	_, err := f.CreateBackend(ctx, Config{Type: FileBackend})
	assert.Error(t, err)
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"memory", "file", "sqlite"}, GetBackendTypeStrings())
}
