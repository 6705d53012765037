// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/examsched/internal/audit"
	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/config"
	"github.com/hitoshi/examsched/internal/database"
	"github.com/hitoshi/examsched/internal/event"
	"github.com/hitoshi/examsched/internal/handler"
	"github.com/hitoshi/examsched/internal/identity"
	"github.com/hitoshi/examsched/internal/logger"
	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/permission"
	"github.com/hitoshi/examsched/internal/registry"
	"github.com/hitoshi/examsched/internal/repository"
	"github.com/hitoshi/examsched/internal/security"
	"github.com/hitoshi/examsched/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを組み立て、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envの読み込み。ファイルが無いのは本番では正常
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded environment from .env")
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("delete_policy", string(cfg.DeletePolicy)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeedAdmin:
		return runSeedAdmin(cfg)
	case CommandServe:
		return runServe(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	practitionerRepo := repository.NewPostgresPractitionerRepo(db)
	locationRepo := repository.NewPostgresLocationRepo(db)
	permissionRepo := repository.NewPostgresPermissionRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	cascadeRepo := repository.NewPostgresCascadeRepo(db)
	auditRepo := repository.NewPostgresAuditRepo(db)

	// 3. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 4. 認証・認可の初期化
	hasher := identity.NewBcryptHasher()
	issuer := identity.NewJWTSessionIssuer(cfg.SessionSecret, time.Duration(cfg.SessionMaxAge)*time.Second)
	resolver := identity.NewResolver(cfg.AdminToken, issuer, practitionerRepo)
	identityService := identity.NewService(practitionerRepo, hasher, issuer)
	policy := authz.NewPolicy(permissionRepo)

	// 5. ドメインサービスの初期化
	sanitizer := security.NewNameSanitizer()
	recorder := audit.NewDBRecorder(auditRepo)

	registryService := registry.NewService(
		locationRepo, practitionerRepo, cascadeRepo,
		policy, sanitizer, hasher, recorder, collector, cfg.DeletePolicy,
	)
	permissionService := permission.NewService(
		permissionRepo, practitionerRepo, locationRepo, policy, recorder, collector,
	)
	eventService := event.NewService(
		eventRepo, locationRepo, practitionerRepo, policy, recorder, collector,
	)
	auditViewer := audit.NewViewer(auditRepo, policy)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Resolver:          resolver,
		Collector:         collector,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		AuthService: identityService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		LocationService:     registryService,
		PractitionerService: registryService,
		PermissionService:   permissionService,
		EventService:        eventService,
		AuditService:        auditViewer,

		DB:       db,
		Gatherer: promRegistry,
	}

	router := handler.NewRouter(deps)

	// 7. 監査ログの保持期間ジョブを日次でバックグラウンド実行
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(jobCtx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(jobCtx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeedAdmin は初期管理者を登録する。
// ADMIN_EMAILとADMIN_PASSWORDから管理者を作成し、既に存在する場合は何もしない。
func runSeedAdmin(cfg *config.Config) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required for seed-admin")
	}
	if name == "" {
		name = "Administrator"
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	practitionerRepo := repository.NewPostgresPractitionerRepo(db)

	existing, err := practitionerRepo.FindByEmail(ctx, security.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		slog.Info("admin already exists, nothing to do", slog.String("id", existing.ID))
		return nil
	}

	hasher := identity.NewBcryptHasher()
	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}

	now := time.Now()
	admin := &model.Practitioner{
		ID:             uuid.New().String(),
		DisplayName:    name,
		Email:          email,
		CredentialHash: hash,
		Role:           model.RoleAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := practitionerRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("seeded initial admin", slog.String("id", admin.ID))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
