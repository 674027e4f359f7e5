package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/extract"
	"github.com/xxxsen/docqa/internal/handler"
	"github.com/xxxsen/docqa/internal/job"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/schedule"
	"github.com/xxxsen/docqa/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "docqa",
		Short:         "document question answering service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (json, yaml or toml)")

	load := func(ctx context.Context) (*app, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		// API keys usually come from a .env next to the binary.
		_ = godotenv.Load()
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(ctx).Info("config loaded", zap.String("config", configPath))
		return newApp(ctx, cfg)
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := load(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(ctx, a)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "ingest documents from disk and print their ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := load(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			for _, path := range args {
				id, err := ingestFile(ctx, a.ingest, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, path)
			}
			return nil
		},
	}

	var docID, session string
	var questions []string
	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "ask questions about an ingested document",
		RunE: func(cmd *cobra.Command, args []string) error {
			if docID == "" || len(questions) == 0 {
				return fmt.Errorf("--doc and --question are required")
			}
			ctx := cmd.Context()
			a, err := load(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			hist := a.sessions.Get(session)
			for _, q := range questions {
				tx, err := a.answers.Answer(ctx, hist, docID, q)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Q: %s\nA: %s\n\n", tx.Question, tx.Answer)
			}
			return nil
		},
	}
	askCmd.Flags().StringVar(&docID, "doc", "", "document id")
	askCmd.Flags().StringArrayVar(&questions, "question", nil, "question to ask, repeat for a follow-up conversation")
	askCmd.Flags().StringVar(&session, "session", "", "conversation session id")

	var reclaim bool
	orphansCmd := &cobra.Command{
		Use:   "orphans",
		Short: "list persisted indexes no document points at",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := load(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			find := a.sweeper.Find
			if reclaim {
				find = a.sweeper.Reclaim
			}
			items, err := find(ctx)
			for _, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", item.Location, item.CreatedAt.Format(time.RFC3339))
			}
			return err
		},
	}
	orphansCmd.Flags().BoolVar(&reclaim, "reclaim", false, "remove the orphans found")

	rootCmd.AddCommand(runCmd, ingestCmd, askCmd, orphansCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func ingestFile(ctx context.Context, ingest *service.IngestService, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	name := filepath.Base(path)
	text, err := extract.Extract(name, raw)
	if err != nil {
		return "", err
	}
	doc, err := ingest.Ingest(ctx, service.IngestInput{Filename: name, Text: text, Raw: raw})
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func runServer(ctx context.Context, a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Strings("extensions", extract.Extensions()),
	)

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewOrphanSweepJob(a.sweeper), cfg.Jobs.OrphanSweepSpec); err != nil {
		return fmt.Errorf("schedule orphan sweep: %w", err)
	}
	if cfg.AI.EmbedCache.DB {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.Jobs.EmbedCacheMaxAgeDays), cfg.Jobs.EmbedCacheCleanupSpec); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup: %w", err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Documents:     handler.NewDocumentHandler(a.documents, a.ingest, cfg.Upload.MaxBytes),
		Ask:           handler.NewAskHandler(a.answers, a.sessions),
		Conversations: handler.NewConversationHandler(a.sessions),
		Files:         handler.NewFileHandler(a.files),
		Health:        handler.NewHealthHandler(a.db),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS.AllowOrigins),
			gzip.Gzip(gzip.DefaultCompression),
			middleware.RateLimit(time.Duration(cfg.RateLimitMs)*time.Millisecond),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logutil.GetLogger(context.Background()).Info("server stopping...")
		return nil
	case err := <-errCh:
		return fmt.Errorf("serve %s: %w", addr, err)
	}
}
