package database

import (
	"path/filepath"
	"testing"

	"github.com/AzielCF/wa-relay/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_SQLiteFile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "nested", "relay.db")

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	defer Close(db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestNewDatabase_Unsupported(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "oracle"
	_, err := NewDatabase(cfg)
	assert.Error(t, err)
}

func TestNewDatabase_PostgresRequiresURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "postgres"
	_, err := NewDatabase(cfg)
	assert.Error(t, err)
}

func TestNewInMemory(t *testing.T) {
	db, err := NewInMemory()
	require.NoError(t, err)
	assert.NoError(t, Close(db))
}
