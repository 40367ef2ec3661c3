package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrations_OrderedAndSeeded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migrations), 2)

	names := make([]string, 0, len(migrations))
	for _, m := range migrations {
		names = append(names, m.Name)
		require.NotEmpty(t, strings.TrimSpace(m.SQL), m.Name)
	}
	require.Equal(t, "0001_init.sql", names[0])
	require.Equal(t, "0002_default_rates.sql", names[1])

	seed := migrations[1].SQL
	require.Contains(t, seed, "INSERT INTO rates")
	require.Contains(t, seed, "WHERE NOT EXISTS (SELECT 1 FROM rates)")
	require.Equal(t, 2, strings.Count(seed, "'residential'"))
	require.Equal(t, 2, strings.Count(seed, "'commercial'"))
}
