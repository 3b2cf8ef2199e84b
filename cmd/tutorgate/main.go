// tutorgate is a safety-gated, grade-aware proxy between students and a
// hosted LLM completion backend.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tutorgate/internal/cache"
	"tutorgate/internal/completion"
	"tutorgate/internal/config"
	"tutorgate/internal/fetch"
	"tutorgate/internal/logging"
	"tutorgate/internal/memory"
	"tutorgate/internal/pipeline"
	"tutorgate/internal/prompt"
	"tutorgate/internal/safety"
	"tutorgate/internal/search"
	"tutorgate/internal/server"
	"tutorgate/internal/storage"
)

const version = "1.0.0"

var (
	configPath string
	debugMode  bool
)

func main() {
	root := &cobra.Command{
		Use:   "tutorgate",
		Short: "Safety-gated LLM proxy for student writing help",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "tutorgate.yaml", "path to config file")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tutorgate " + version)
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running instance's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth()
		},
	}

	root.AddCommand(serveCmd, versionCmd, healthCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debugMode {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zcfg.Build()
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	if err := logging.Configure(logging.Options{Dir: cfg.Logging.Dir, Level: cfg.Logging.Level}); err != nil {
		logger.Warn("debug logging disabled", zap.Error(err))
	}
	defer logging.CloseAll()
	logging.Boot("tutorgate %s starting", version)

	// Capability selection happens once here: a configured database path
	// selects the durable store, otherwise the in-memory fallback.
	var (
		db          *sql.DB
		store       memory.Store
		resultCache cache.Cache
	)
	if cfg.Store.SQLitePath != "" {
		db, err = storage.Open(cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open durable store: %w", err)
		}
		defer db.Close()

		store, err = memory.NewSQLiteStore(db)
		if err != nil {
			return err
		}
		resultCache, err = cache.NewSQLiteCache(db)
		if err != nil {
			return err
		}
		logger.Info("durable store enabled", zap.String("path", cfg.Store.SQLitePath))
	} else {
		store = memory.NewInMemoryStore()
		resultCache = cache.NewInMemoryCache()
		logger.Info("no SQLITE_PATH configured, using in-memory stores")
	}
	defer store.Close()
	defer resultCache.Close()

	rules := safety.NewRuleSet(cfg.ExtraRules())
	logger.Info("rule set loaded", zap.Int("rules", rules.Len()))

	llm := completion.NewClient(completion.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLMTimeout(),
	})
	searcher := search.NewClient(search.Config{
		APIKey:  cfg.Search.APIKey,
		BaseURL: cfg.Search.BaseURL,
		Timeout: cfg.SearchTimeout(),
	})
	fetcher := fetch.New(fetch.Config{
		BrowserBin:     cfg.Browser.Bin,
		NavTimeout:     cfg.NavTimeout(),
		PersistCookies: cfg.Browser.PersistCookies,
	})

	builder := prompt.NewBuilder(rules, store)
	orch := pipeline.New(safety.NewDetector(), builder, store, resultCache, llm, searcher, fetcher)

	caps := server.Capabilities{
		LLM:     llm.Configured(),
		Search:  searcher.Configured(),
		Store:   cfg.Store.SQLitePath != "",
		Browser: fetcher.RichAvailable(),
	}
	logger.Info("capabilities",
		zap.Bool("llm", caps.LLM),
		zap.Bool("search", caps.Search),
		zap.Bool("store", caps.Store),
		zap.Bool("browser", caps.Browser))

	srv := server.New(cfg.Server.Addr, orch, caps, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runHealth() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	if addr[0] == ':' {
		addr = "localhost" + addr
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read health response: %w", err)
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	fmt.Println(string(body))
	return nil
}
