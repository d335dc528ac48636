package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/credkeeper/internal/admincli"
	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/thejerf/abtime"
)

func main() {

	name, args := admincli.SplitCommand(os.Args[1:])
	if name == "" {
		admincli.Usage(os.Stderr)
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSONLogger(os.Stderr, slog.LevelWarn, "credkeeper-admin")

	db, m, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	clock := abtime.NewRealTime()
	admin := services.NewAdminService(db, m, cryptox.NewBcryptHasher(cfg.BcryptCost), services.PolicyFromConfig(cfg), clock, logger)
	maintenance := services.NewMaintenanceService(db, m, clock, logger)
	migrate := func(ctx context.Context) error { return m.RunMigrations(ctx, db) }

	app := admincli.NewApp(admin, maintenance, migrate, os.Stdout)
	if err := app.Run(ctx, name, args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		db.Close()
		os.Exit(1)
	}

}
