package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/internflow/internal/config"
	"github.com/garyjia/internflow/internal/container"
	"github.com/garyjia/internflow/internal/domain/entity"
	httpapi "github.com/garyjia/internflow/internal/interfaces/http"
	"github.com/garyjia/internflow/pkg/database"
	"github.com/garyjia/internflow/pkg/utils"
)

var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "internflow",
		Short:         "Approval workflows for internships and resumes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// bootstrap loads configuration and builds the logger shared by every command
func bootstrap(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			httpapi.Version = version
			logger.Info("Starting internflow",
				zap.String("version", version),
				zap.Int("port", cfg.Server.Port),
				zap.String("notify_driver", cfg.Notify.Driver))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
			if err != nil {
				return err
			}
			if err := c.Start(ctx); err != nil {
				_ = c.Close()
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return c.Server().Start(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("Shutting down")
				return nil
			})

			runErr := g.Wait()
			closeErr := c.Close()
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return closeErr
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    1,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.NewMigrator(db, logger).Migrate()
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default workflows when they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cc := cfg.ToContainerConfig()
			cc.Worker.SweepEnabled = false

			c, err := container.NewContainer(cc, logger)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				_ = c.Close()
				return err
			}
			defer c.Close()

			return container.SeedWorkflows(cmd.Context(), c.Services().Definition, logger)
		},
	}
}

type tokenOptions struct {
	userID       string
	role         string
	universityID string
	companyID    string
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	topts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			role := entity.Role(topts.role)
			if !role.IsValid() || role == entity.RoleSystem {
				return fmt.Errorf("unknown role %q", topts.role)
			}

			tokens := httpapi.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			token, err := tokens.GenerateToken(entity.Actor{
				UserID:       topts.userID,
				Role:         role,
				UniversityID: topts.universityID,
				CompanyID:    topts.companyID,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&topts.userID, "user", "", "user id carried by the token")
	cmd.Flags().StringVar(&topts.role, "role", "", "role: student, company, university, director, admin or super_admin")
	cmd.Flags().StringVar(&topts.universityID, "university", "", "university id for scoped roles")
	cmd.Flags().StringVar(&topts.companyID, "company", "", "company id for company users")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
