//go:build integration

package tests

import (
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/internal/eventpub"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/rs/zerolog"
)

const configDir = "../../../configs"

// setupServer returns a server backed by Postgres. The database is flushed once the test is done.
func setupServer(t *testing.T) *httpserver.Server {
	t.Helper()

	config := integrationtest.LoadConfig(t, configDir)

	zerolog.SetGlobalLevel(zerolog.FatalLevel)
	logger := middleware.CreateLogger(config)

	db := integrationtest.SetupDB(t, config.DBDriver, config.DBSource)
	integrationtest.ApplySchema(t, db, filepath.Join(configDir, "db", "schema.sql"))
	integrationtest.Flush(t, db)

	gin.SetMode(gin.ReleaseMode)

	server, err := httpserver.New(ledgerrepo.NewRepoPGS(db), eventpub.Noop{}, logger, config)
	if err != nil {
		t.Fatalf(`httpserver.New(repo, publisher, logger, config) returned error: %v`, err)
	}

	return server
}
