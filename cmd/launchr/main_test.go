package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgomes/launchr/internal/config"
	"github.com/mgomes/launchr/internal/db"
)

func TestRescanHistorySurvivesShutdown(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	for i := 1; i <= 3; i++ {
		cfg, err := config.Load()
		require.NoError(t, err)
		cfg.ApplicationFolders = []string{t.TempDir()}

		a, err := newApp(cfg, zap.NewNop())
		require.NoError(t, err)
		runRescan(context.Background(), a)
		a.close()

		dbPath, err := config.DBPath()
		require.NoError(t, err)
		database, err := db.Open(dbPath)
		require.NoError(t, err)
		count, err := database.RescanCount()
		require.NoError(t, database.Close())
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}
