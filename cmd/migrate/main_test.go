package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/poplingo_service/migrations"
)

func TestPgxURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@localhost:5432/db", want: "pgx5://u:p@localhost:5432/db"},
		{in: "postgresql://localhost/db?sslmode=disable", want: "pgx5://localhost/db?sslmode=disable"},
		{in: "pgx5://localhost/db", want: "pgx5://localhost/db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pgxURL(tt.in))
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql"} {
		data, err := migrations.FS.ReadFile(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data)
	}

	up, err := migrations.FS.ReadFile("000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "UNIQUE (user_id, term)")
	assert.Contains(t, string(up), "saved_at")
}
