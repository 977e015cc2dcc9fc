package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ads-manager/config"
	"ads-manager/database"
	"ads-manager/server"

	_ "github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

func main() {
	commandFlag := flag.String("command", "start", "Command to run: start, migrate, seed, create-migration")
	nameFlag := flag.String("name", "", "Migration name (alphanum+underscore only)")
	dirFlag := flag.String("dir", "./database/migrations", "Target directory for the new migration files")
	loginFlag := flag.String("login", "", "Login of the user to seed")
	passwordFlag := flag.String("password", "", "Password of the user to seed")
	fullNameFlag := flag.String("full-name", "", "Display name of the user to seed")
	flag.Parse()

	if *commandFlag == "" {
		fmt.Println("Usage: go run main.go --command <command-name> [... other options]")
		os.Exit(1)
	}

	if *commandFlag == "create-migration" {
		files, err := database.CreateMigration(*nameFlag, *dirFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, f := range files {
			fmt.Println("created", f)
		}
		return
	}

	cfg := config.MustLoad()

	switch *commandFlag {
	case "start":
		server.StartServer(cfg)
	case "migrate":
		initLogger(cfg)
		if err := database.Migrate(cfg.Database.Path); err != nil {
			logger.Error("Migration failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("Migrations applied", zap.String("path", cfg.Database.Path))
	case "seed":
		initLogger(cfg)
		if *loginFlag == "" || *passwordFlag == "" {
			fmt.Println("Usage: go run main.go --command seed --login <login> --password <password> [--full-name <name>]")
			os.Exit(1)
		}
		conn := database.InitializeDatabase(cfg.Database)
		defer conn.Close()
		id, err := database.SeedUser(context.Background(), conn, *loginFlag, *passwordFlag, *fullNameFlag, 0)
		if err != nil {
			logger.Error("Seeding user failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("User created", zap.Int("user_id", id), zap.String("login", *loginFlag))
	default:
		fmt.Printf("Unknown command %q\n", *commandFlag)
		os.Exit(1)
	}
}

func initLogger(cfg *config.Config) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  cfg.Logger.CallerKey,
		TimeKey:    cfg.Logger.TimeKey,
		CallerSkip: cfg.Logger.CallerSkip,
	})
}
