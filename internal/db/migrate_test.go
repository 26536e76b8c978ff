package db

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := NewMigrator(nil).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	for i, mig := range migrations {
		assert.Equal(t, i+1, mig.Version)
		assert.NotEmpty(t, strings.TrimSpace(mig.SQL))
	}
	assert.Contains(t, migrations[0].SQL, "appointments_live_cell")
	assert.Contains(t, migrations[0].SQL, "WHERE status <> 'cancelled'")
	assert.Contains(t, migrations[1].SQL, "slot_overrides")
	assert.Contains(t, migrations[2].SQL, "clinical_records")
}

func TestLoadMigrations_SortsAndSkips(t *testing.T) {
	source := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("notes")},
		"seed.sql":       {Data: []byte("SELECT 0;")},
		"draft_x.sql":    {Data: []byte("SELECT 0;")},
	}

	migrations, err := newMigratorFS(nil, source).LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{migrations[0].Version, migrations[1].Version, migrations[2].Version})
	assert.Equal(t, "010_tables.sql", migrations[2].Name)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	source := fstest.MapFS{
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := newMigratorFS(nil, source).LoadMigrations()
	assert.ErrorContains(t, err, "duplicate migration version 1")
}
