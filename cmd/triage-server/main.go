package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/edtriage/triage/internal/config"
	"github.com/edtriage/triage/internal/domain/assignment"
	"github.com/edtriage/triage/internal/domain/cases"
	"github.com/edtriage/triage/internal/domain/department"
	"github.com/edtriage/triage/internal/domain/patient"
	"github.com/edtriage/triage/internal/domain/risk"
	"github.com/edtriage/triage/internal/domain/staff"
	"github.com/edtriage/triage/internal/platform/auth"
	"github.com/edtriage/triage/internal/platform/db"
	"github.com/edtriage/triage/internal/platform/middleware"
	"github.com/edtriage/triage/internal/platform/ml"
	"github.com/edtriage/triage/migrations"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "triage-server",
		Short: "Emergency department triage API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(tokenCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the triage API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func staffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a nurse, doctor or admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := &staff.Staff{}
			st.EmployeeID, _ = cmd.Flags().GetString("employee-id")
			st.FullName, _ = cmd.Flags().GetString("name")
			st.Role, _ = cmd.Flags().GetString("role")
			st.Department, _ = cmd.Flags().GetString("department")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := staff.NewService(staff.NewRepoPG(pool)).Register(ctx, st); err != nil {
				return err
			}
			fmt.Printf("Created %s %s (%s) with id %s\n", st.Role, st.FullName, st.EmployeeID, st.ID)
			return nil
		},
	}
	createCmd.Flags().String("employee-id", "", "Unique employee identifier")
	createCmd.Flags().String("name", "", "Full name")
	createCmd.Flags().String("role", "", "nurse, doctor or admin")
	createCmd.Flags().String("department", "", "Department (required for doctors)")

	cmd.AddCommand(createCmd)
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token for a staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			employeeID, _ := cmd.Flags().GetString("employee-id")
			if employeeID == "" {
				return fmt.Errorf("--employee-id is required")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.AuthTokenTTL
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			st, err := staff.NewService(staff.NewRepoPG(pool)).GetByEmployeeID(ctx, employeeID)
			if err != nil {
				return fmt.Errorf("lookup %s: %w", employeeID, err)
			}
			token, err := auth.IssueToken(jwtConfig(cfg), st.Principal(), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issueCmd.Flags().String("employee-id", "", "Employee identifier of the staff member")
	issueCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to AUTH_TOKEN_TTL)")

	cmd.AddCommand(issueCmd)
	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
}

// newEcho builds the server with the global middleware stack, public health
// check and the /api/v1 group.
func newEcho(cfg *config.Config, logger zerolog.Logger) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevStaffHeader, auth.DevRoleHeader},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}
	e.Use(middleware.Audit(logger, nil))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	return e, apiV1
}

// pipeline holds the frozen classifiers built at startup.
type pipeline struct {
	risk       *risk.Scorer
	department *department.Classifier
}

// buildPipeline loads the model artifacts and embeds the department
// descriptions concurrently.
func buildPipeline(ctx context.Context, cfg *config.Config, embedder ml.Embedder, logger zerolog.Logger) (*pipeline, error) {
	client := resty.New().SetTimeout(cfg.InferenceTimeout)
	if cfg.ModelServerURL != "" {
		client.SetBaseURL(cfg.ModelServerURL)
	}

	var (
		models *ml.Models
		index  *department.Index
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		models, err = ml.LoadModels(gctx, ml.ModelPaths{
			Risk:       cfg.RiskModelPath(),
			Department: cfg.DepartmentModelPath(),
		}, client, cfg.InferenceTimeout)
		return err
	})
	g.Go(func() error {
		var err error
		index, err = department.BuildIndex(gctx, embedder)
		if err != nil {
			return fmt.Errorf("department index: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	scorer, err := risk.NewScorer(models.Risk)
	if err != nil {
		return nil, err
	}
	clf, err := department.New(models.Department, embedder, index, department.Config{
		ConfidenceFloor: cfg.DepartmentConfidenceFloor,
		DefaultLabel:    cfg.DefaultDepartment,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("risk_model", models.Risk.Artifact.Version).
		Str("department_model", models.Department.Artifact.Version).
		Int("risk_features", len(models.Risk.Artifact.Schema)).
		Int("department_features", len(models.Department.Artifact.Schema)).
		Msg("models loaded")
	return &pipeline{risk: scorer, department: clf}, nil
}

// newEmbedder returns the embedding client, cached in Redis when REDIS_URL is
// set, with every call bounded by the inference timeout.
func newEmbedder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ml.Embedder, func(), error) {
	httpEmb := ml.NewHTTPEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel, cfg.InferenceTimeout)
	var emb ml.Embedder = httpEmb
	cleanup := func() {}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rc := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, embedding cache disabled")
			_ = rc.Close()
		} else {
			emb = ml.NewCachedEmbedder(emb, ml.NewRedisKVStore(rc), httpEmb.Model(), cfg.EmbeddingCacheTTL, logger)
			cleanup = func() { _ = rc.Close() }
			logger.Info().Msg("embedding cache enabled")
		}
	}
	return ml.EmbedderWithTimeout(emb, cfg.InferenceTimeout), cleanup, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Inference pipeline
	embedder, closeCache, err := newEmbedder(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure embedder")
	}
	defer closeCache()

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	pl, err := buildPipeline(startCtx, cfg, embedder, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build inference pipeline")
	}

	e, apiV1 := newEcho(cfg, logger)
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	// Domain services
	staffSvc := staff.NewService(staff.NewRepoPG(pool))
	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	balancer := assignment.NewBalancer(staffSvc, logger)
	caseSvc := cases.NewService(
		cases.NewRepoPG(pool),
		db.NewRunner(pool),
		patientSvc,
		staffSvc,
		cases.NewAssessor(pl.risk, pl.department, risk.DefaultOptions()),
		balancer,
		logger,
	)

	staff.NewHandler(staffSvc, balancer).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	department.NewHandler(pl.department).RegisterRoutes(apiV1)
	cases.NewHandler(caseSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
