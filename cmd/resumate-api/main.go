package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/resumate/internal/auth"
	"github.com/MarcoPoloResearchLab/resumate/internal/config"
	"github.com/MarcoPoloResearchLab/resumate/internal/database"
	"github.com/MarcoPoloResearchLab/resumate/internal/editor"
	"github.com/MarcoPoloResearchLab/resumate/internal/imports"
	"github.com/MarcoPoloResearchLab/resumate/internal/localcache"
	"github.com/MarcoPoloResearchLab/resumate/internal/logging"
	"github.com/MarcoPoloResearchLab/resumate/internal/resumes"
	"github.com/MarcoPoloResearchLab/resumate/internal/server"
	"github.com/MarcoPoloResearchLab/resumate/internal/users"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile  string
	envFiles []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "resumate-api",
		Short: "Resumate editing session service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newTokenCommand(), newDraftsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringSliceVar(&envFiles, "env-file", []string{".env"}, "Dotenv files loaded before reading the environment")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.StringSlice("allowed-origins", nil, "CORS origins allowed to call the API")
	flags.String("remote-driver", defaults.GetString("remote.driver"), "Remote store driver (sqlite, postgres)")
	flags.String("remote-dsn", defaults.GetString("remote.dsn"), "Remote store DSN or SQLite path")
	flags.String("cache-driver", defaults.GetString("cache.driver"), "Local cache driver (sqlite, redis)")
	flags.String("cache-path", defaults.GetString("cache.path"), "SQLite local cache path")
	flags.String("cache-redis-url", "", "Redis URL for the local cache")
	flags.Bool("autosave", defaults.GetBool("autosave.enabled"), "Enable debounced auto-save")
	flags.Int("quiet-period-ms", defaults.GetInt("autosave.quiet_period_ms"), "Debounce quiet period in milliseconds")
	flags.String("manual-save-mode", defaults.GetString("autosave.manual_mode"), "Manual save mode (unified, independent)")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "remote.driver", "remote-driver")
	bindFlag(cmd, "remote.dsn", "remote-dsn")
	bindFlag(cmd, "cache.driver", "cache-driver")
	bindFlag(cmd, "cache.path", "cache-path")
	bindFlag(cmd, "cache.redis_url", "cache-redis-url")
	bindFlag(cmd, "autosave.enabled", "autosave")
	bindFlag(cmd, "autosave.quiet_period_ms", "quiet-period-ms")
	bindFlag(cmd, "autosave.manual_mode", "manual-save-mode")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newTokenCommand() *cobra.Command {
	var (
		userID string
		email  string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.SigningSecret),
				Issuer:        appConfig.Issuer,
				TokenTTL:      appConfig.TokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := issuer.Issue(auth.SessionClaims{
				UserID:          userID,
				UserEmail:       email,
				UserDisplayName: name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id to embed in the token")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&name, "name", "", "User display name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newDraftsCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Print snapshots left in the local cache for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			ownerID, err := resumes.NewOwnerID(owner)
			if err != nil {
				return err
			}
			cache, err := openCache(cmd.Context(), appConfig, zap.NewNop())
			if err != nil {
				return err
			}
			defer cache.Close()

			documents, err := localcache.Recover(cmd.Context(), cache, ownerID)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(documents)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner id whose drafts to print")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func openCache(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (localcache.Cache, error) {
	if appConfig.CacheDriver == "redis" {
		cache, err := localcache.OpenRedis(ctx, appConfig.CacheRedisURL, localcache.RedisConfig{
			TTL:    appConfig.CacheTTL,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return cache, nil
	}
	cache, err := localcache.OpenSQLite(appConfig.CachePath, localcache.SQLiteConfig{Logger: logger})
	if err != nil {
		return nil, err
	}
	return cache, nil
}

func runServer(ctx context.Context) (err error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: appConfig.RemoteDriver,
		DSN:    appConfig.RemoteDSN,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sqlDB.Close()) }()

	cache, err := openCache(ctx, appConfig, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, cache.Close()) }()

	store, err := resumes.NewStore(resumes.StoreConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	identities, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return err
	}
	ids := resumes.NewUUIDProvider()
	importer, err := imports.NewImporter(imports.Config{IDProvider: ids, Logger: logger})
	if err != nil {
		return err
	}

	editorService, err := editor.NewService(editor.ServiceConfig{
		Store:            store,
		Cache:            cache,
		Profiles:         identities,
		Importer:         importer,
		IDProvider:       ids,
		QuietPeriod:      appConfig.QuietPeriod,
		StatusResetDelay: appConfig.StatusResetDelay,
		SaveMode:         appConfig.ManualSaveMode,
		AutoSaveDisabled: !appConfig.AutoSaveEnabled,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.Issuer,
		CookieName:    appConfig.CookieName,
	})
	if err != nil {
		return err
	}

	sessions := server.NewSessionRegistry(editorService)
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Validator:      validator,
		Owners:         identities,
		Sessions:       sessions,
		Profiles:       identities,
		Drafts:         cache,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("remote_driver", appConfig.RemoteDriver),
			zap.String("cache_driver", appConfig.CacheDriver),
			zap.String("manual_save_mode", string(appConfig.ManualSaveMode)),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		// Queued snapshots are flushed before the stores close.
		return multierr.Append(shutdownErr, sessions.CloseAll(shutdownCtx))
	case err := <-errCh:
		return multierr.Append(err, sessions.CloseAll(context.Background()))
	}
}
