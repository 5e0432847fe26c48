package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/seenlim/docchat/internal/ai"
	"github.com/seenlim/docchat/internal/client"
	"github.com/seenlim/docchat/internal/config"
	"github.com/seenlim/docchat/internal/db"
	"github.com/seenlim/docchat/internal/embedcache"
	"github.com/seenlim/docchat/internal/filestore"
	"github.com/seenlim/docchat/internal/handler"
	"github.com/seenlim/docchat/internal/job"
	"github.com/seenlim/docchat/internal/middleware"
	"github.com/seenlim/docchat/internal/model"
	"github.com/seenlim/docchat/internal/repo"
	"github.com/seenlim/docchat/internal/schedule"
	"github.com/seenlim/docchat/internal/service"
	"github.com/seenlim/docchat/internal/splitter"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docchat",
		Short: "docchat backend server and client",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run docchat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			database, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(database); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, database)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(uploadCommand())

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	groupRepo := repo.NewWorkgroupRepo(database)
	workspaceRepo := repo.NewWorkspaceRepo(database)
	docRepo := repo.NewDocumentRepo(database)
	segmentRepo := repo.NewSegmentRepo(database)
	linkRepo := repo.NewDocumentWorkspaceRepo(database)
	convRepo := repo.NewConversationRepo(database)
	msgRepo := repo.NewMessageRepo(database)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	aiProvider = ai.WithTimeout(aiProvider, time.Duration(cfg.AI.Timeout)*time.Second)
	generator := ai.NewGenerator(aiProvider, cfg.AI.Model)
	embedder := embedcache.WrapLruCacheToEmbedder(
		ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel),
		cfg.EmbedCache.Size,
		time.Duration(cfg.EmbedCache.TTLHours)*time.Hour,
	)

	splitCfg := splitter.Config{
		MaxChars:     cfg.Upload.MaxSegmentCh,
		OverlapChars: cfg.Upload.OverlapCh,
		MinChars:     cfg.Upload.MinSegmentCh,
	}
	workspaceService := service.NewWorkspaceService(groupRepo, workspaceRepo)
	documentService := service.NewDocumentService(docRepo, segmentRepo, linkRepo, workspaceRepo, store, cfg.Upload.MaxBytes)
	processService := service.NewProcessService(docRepo, segmentRepo, store, embedder, splitCfg, cfg.AI.MaxInputChars)
	chatService := service.NewChatService(convRepo, msgRepo, segmentRepo, workspaceRepo, docRepo, generator, embedder, cfg.Chat)

	deps := handler.RouterDeps{
		Workspaces:       handler.NewWorkspaceHandler(workspaceService),
		Documents:        handler.NewDocumentHandler(documentService),
		Chat:             handler.NewChatHandler(chatService),
		UploadMiddleware: []gin.HandlerFunc{middleware.RateLimit(cfg.Upload.RatePerMin)},
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllow),
			middleware.RequestID(),
			middleware.Metrics(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewDocumentProcessJob(processService, cfg.Process.BatchSize), cfg.Process.CronSpec); err != nil {
		return err
	}
	staleAge := time.Duration(cfg.Upload.StaleHours * float64(time.Hour))
	if err := scheduler.AddJob(job.NewStaleDocumentJob(processService, staleAge), "0 * * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.MetricsPort > 0 {
		go serveMetrics(cfg.MetricsPort)
	}

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	logutil.GetLogger(context.Background()).Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logutil.GetLogger(context.Background()).Error("metrics server error", zap.Error(err))
	}
}

func uploadCommand() *cobra.Command {
	var (
		server   string
		wait     bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "upload a document and optionally wait for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api := client.New(server)
			doc, err := api.UploadDocument(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("uploaded document %d (%s v%d), status=%s\n", doc.ID, doc.OriginalName, doc.Version, doc.Status)
			if !wait {
				return nil
			}
			status, err := api.WaitForDocument(ctx, doc.ID, interval)
			if err != nil {
				return err
			}
			fmt.Printf("document %d finished: status=%s segments=%d embedded=%d\n",
				doc.ID, status.Status, status.Segments, status.SegmentsWithEmbeddings)
			if status.Status != model.DocumentStatusProcessed {
				return fmt.Errorf("processing failed: %s", status.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://127.0.0.1:8080", "docchat server base url")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll status until the document turns terminal")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultPollInterval, "poll interval")
	return cmd
}
