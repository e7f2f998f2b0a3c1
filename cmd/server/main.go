package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hlstype/internal/backup"
	"hlstype/internal/config"
	"hlstype/internal/handler"
	"hlstype/internal/logger"
	authmw "hlstype/internal/middleware"
	"hlstype/internal/version"
)

const backupTimeout = 30 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	// setup loads configuration, starts logging and wires the app.
	setup := func(ctx context.Context) (*app, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := logger.InitLogger(cfg.DataDir, cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return newApp(ctx, cfg, zap.L())
	}

	rootCmd := &cobra.Command{
		Use:          "hlstype",
		Short:        "Headline typography service: webfont kits, feature presets and combined CSS",
		SilenceUsage: true,
		Version:      version.GetInfo().String(),
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()
			return serve(ctx, a)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "activate",
		Short: "Create the fonts directory and its access rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()
			return a.installer.Activate(cmd.Context())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Delete every option record, cached entry and uploaded font kit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()
			return a.installer.Uninstall(cmd.Context())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:       "backup <s3|webdav>",
		Short:     "Archive font kits and options to a backup target",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{backup.TargetS3, backup.TargetWebDAV},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), backupTimeout)
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			target, err := backup.NewTarget(ctx, args[0], a.cfg.Backup)
			if err != nil {
				return err
			}
			name, err := a.backups.Run(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	})

	return rootCmd
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	zap.L().Info("Starting hlstype",
		zap.String("data_dir", cfg.DataDir),
		zap.String("version", version.Version),
	)

	if err := a.installer.Activate(ctx); err != nil {
		return err
	}

	// Start automatic backup scheduler
	if cfg.Backup.Schedule != "" && cfg.Backup.Target != "" {
		target, err := backup.NewTarget(ctx, cfg.Backup.Target, cfg.Backup)
		if err != nil {
			return err
		}
		scheduler, err := a.backups.Schedule(cfg.Backup.Schedule, target, backupTimeout)
		if err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(logger.GetLogWriter())
	e.Validator = handler.NewValidator()

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(zapLoggerMiddleware())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dK", cfg.Upload.MaxArchiveSize>>10+1024)))
	e.Use(handler.GuardUploads("/uploads/hls/"))

	a.handler().Routes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Serve uploaded font kits from the data directory
	e.Static("/uploads", cfg.UploadsDir())

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("Server starting", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			zap.L().Error("Server failed to start", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// zapLoggerMiddleware returns a middleware that logs HTTP requests using zap
func zapLoggerMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			err := next(c)

			// Calculate duration
			duration := time.Since(start)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", res.Status),
				zap.Int64("bytes_out", res.Size),
				zap.Duration("duration", duration),
				zap.String("remote_ip", c.RealIP()),
			}

			// Add request ID if available
			if reqID := res.Header().Get(echo.HeaderXRequestID); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			if user := authmw.Username(c); user != "" {
				fields = append(fields, zap.String("user", user))
			}

			// Log errors at error level, success at info level
			if err != nil {
				fields = append(fields, zap.Error(err))
				zap.L().Error("Request failed", fields...)
			} else if res.Status >= 500 {
				zap.L().Error("Server error", fields...)
			} else if res.Status >= 400 {
				zap.L().Warn("Client error", fields...)
			} else {
				zap.L().Info("Request completed", fields...)
			}

			return err
		}
	}
}
