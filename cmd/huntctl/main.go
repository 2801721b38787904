package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"bonus-hunt/internal/auth"
	"bonus-hunt/internal/config"
	"bonus-hunt/internal/database"
	"bonus-hunt/internal/repository"
	"bonus-hunt/internal/services"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Migrate MigrateCmd `cmd:"" help:"create or update the database schema"`
	Token   TokenCmd   `cmd:"" help:"issue an operator token"`
	Status  StatusCmd  `cmd:"" help:"print an operator's active hunt"`
}

type MigrateCmd struct{}

type TokenCmd struct {
	Owner string        `help:"operator id the token is issued to" required:""`
	TTL   time.Duration `help:"token lifetime" default:"24h"`
}

type StatusCmd struct {
	Owner string `help:"operator id" required:""`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("huntctl"),
		kong.Description("Bonus hunt administration"),
		kong.UsageOnError(),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.InfoLevel})
	if cli.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	log.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	switch ctx.Command() {
	case "migrate":
		err = cli.Migrate.Run(cfg)
	case "token":
		err = cli.Token.Run(cfg)
	case "status":
		err = cli.Status.Run(context.Background(), cfg, logger)
	default:
		err = fmt.Errorf("unknown command: %s", ctx.Command())
	}
	if err != nil {
		logger.Fatal("Command failed", "command", ctx.Command(), "error", err)
	}
}

func (cmd *MigrateCmd) Run(cfg *config.Config) error {
	db, err := database.Open(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	log.Info("Schema is up to date", "driver", cfg.Database.Driver)
	return nil
}

func (cmd *TokenCmd) Run(cfg *config.Config) error {
	auth.InitJWT(cfg.App.JWTSecret)

	token, err := auth.GenerateToken(cmd.Owner, cmd.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func (cmd *StatusCmd) Run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	db, err := database.Open(cfg.Database.Driver, cfg.GetDSN())
	if err != nil {
		return err
	}

	huntService := services.NewHuntService(repository.NewRepository(db), nil, logger, services.HuntOptions{})
	state, err := huntService.GetActiveHunt(ctx, cmd.Owner)
	if err != nil {
		return err
	}
	state.WidgetURL = cfg.Server.PublicBaseURL + "/widget/" + state.Hunt.ID.String()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}
