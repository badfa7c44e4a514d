// Command imcore runs the relationship and notification core of the IM
// backend: the contact application API, contact lists, profiles and the
// websocket push channel.
//
//	imcore                 # same as "imcore serve"
//	imcore migrate         # create or update the schema and exit
//	imcore adduser --username alice --nickname Alice
//	imcore token --user-id 1
//
// Configuration comes from the environment, optionally seeded from a dotenv
// file (see --env-file).
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI is the command tree.
type CLI struct {
	EnvFile string `help:"Dotenv file loaded before reading the environment. Missing files are ignored." default:".env" type:"path" name:"env-file"`

	Serve   serveCmd   `cmd:"" default:"1" help:"Run the HTTP and websocket server."`
	Migrate migrateCmd `cmd:"" help:"Apply the database schema and exit."`
	AddUser addUserCmd `cmd:"" name:"adduser" help:"Create a user account."`
	Token   tokenCmd   `cmd:"" help:"Mint a bearer token for a user."`
	Version versionCmd `cmd:"" help:"Print the build version."`
}

// loadEnv seeds the process environment from the dotenv file. Variables
// already set in the environment win.
func (c *CLI) loadEnv() error {
	if c.EnvFile == "" {
		return nil
	}
	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.EnvFile, err)
	}
	return nil
}

// @title                      go-im-core API
// @version                    1.0
// @description                Contact applications, contacts and profiles. Realtime events are pushed on GET /ws.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                "Bearer <token>", see "imcore token".
func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("imcore"),
		kong.Description("Contact relationships and realtime notifications for IM."),
		kong.UsageOnError(),
	)
	if err := cli.loadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
