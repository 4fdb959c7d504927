package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_Embedded(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])
}

func TestMigrationNames_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_b.sql":   {Data: []byte("SELECT 2")},
		"m/001_a.sql":   {Data: []byte("SELECT 1")},
		"m/README.md":   {Data: []byte("notes")},
		"m/sub/003.sql": {Data: []byte("SELECT 3")},
	}
	names, err := migrationNames(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)

	_, err = migrationNames(fsys, "missing")
	assert.Error(t, err)
}
