package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-im-core/internal/repo"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	p, err := kong.New(&cli, kong.Name("imcore"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	ctx, err := p.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func TestCLI_DefaultsToServe(t *testing.T) {
	cli, ctx := parse(t)
	assert.Equal(t, "serve", ctx.Command())
	assert.Equal(t, ".env", filepath.Base(cli.EnvFile))
}

func TestCLI_TokenAndAddUserFlags(t *testing.T) {
	cli, ctx := parse(t, "token", "--user-id", "42", "--ttl", "2h")
	assert.Equal(t, "token", ctx.Command())
	assert.Equal(t, int64(42), cli.Token.UserID)
	assert.Equal(t, 2*time.Hour, cli.Token.TTL)

	cli, ctx = parse(t, "adduser", "--username", "alice")
	assert.Equal(t, "adduser", ctx.Command())
	assert.Equal(t, "alice", cli.AddUser.Username)
}

func TestCLI_TokenRequiresUserID(t *testing.T) {
	var cli CLI
	p, err := kong.New(&cli, kong.Name("imcore"))
	require.NoError(t, err)
	_, err = p.Parse([]string{"token"})
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		cli := CLI{EnvFile: filepath.Join(t.TempDir(), "absent.env")}
		assert.NoError(t, cli.loadEnv())
	})

	t.Run("file seeds unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("IMCORE_TEST_A=from-file\nIMCORE_TEST_B=from-file\n"), 0o600))
		t.Setenv("IMCORE_TEST_B", "from-env")
		t.Cleanup(func() { _ = os.Unsetenv("IMCORE_TEST_A") })

		cli := CLI{EnvFile: path}
		require.NoError(t, cli.loadEnv())
		assert.Equal(t, "from-file", os.Getenv("IMCORE_TEST_A"))
		assert.Equal(t, "from-env", os.Getenv("IMCORE_TEST_B"))
	})
}

func TestTokenCmd_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GIN_MODE", "test")
	err := (&tokenCmd{UserID: 1}).Run()
	assert.EqualError(t, err, "JWT_SECRET is not set")
}

func TestAddUserCmd_StoresNormalizedUsername(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "im.db")
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("GIN_MODE", "test")
	t.Setenv("OTEL_ENABLED", "false")

	require.NoError(t, (&addUserCmd{Username: " jose\u0301 "}).Run())

	db, err := repo.OpenSQLite(dbPath)
	require.NoError(t, err)
	u, err := repo.GetUserByUsername(context.Background(), db, "jos\u00e9")
	require.NoError(t, err)
	assert.Equal(t, "jos\u00e9", u.Nickname)

	assert.EqualError(t, (&addUserCmd{Username: "   "}).Run(), "username must not be blank")
}
