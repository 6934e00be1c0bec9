// Command namescreen screens a batch of submitted party names against a
// watchlist candidate source and writes the batch result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veridex/namescreen/internal/cache"
	"github.com/veridex/namescreen/internal/config"
	"github.com/veridex/namescreen/internal/screening"
	"github.com/veridex/namescreen/internal/source"
	"github.com/veridex/namescreen/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: namescreen.yaml in ., ./configs, /etc/namescreen)")
		inputPath  = flag.String("input", "", "path to the batch submission JSON file (\"-\" for stdin)")
		outputPath = flag.String("output", "-", "path to write the batch result JSON (\"-\" for stdout)")
		dataset    = flag.String("dataset", "", "dataset to screen against (overrides source.dataset)")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: namescreen -input batch.json [-config namescreen.yaml] [-output result.json] [-dataset sanctions]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewSugared(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *inputPath, *outputPath, *dataset); err != nil {
		log.Errorw("screening run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger, inputPath, outputPath, dataset string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entities, err := readBatch(inputPath)
	if err != nil {
		return fmt.Errorf("reading batch input: %w", err)
	}

	src, err := source.New(cfg.Source, log)
	if err != nil {
		return err
	}

	candidateCache := cache.New(cfg.Cache, log)
	service := screening.NewService(cfg.Screening, src, candidateCache, log)

	if cfg.Ops.Enabled {
		opsCtx, opsCancel := context.WithCancel(ctx)
		defer opsCancel()
		go serveOps(opsCtx, cfg.Ops.Addr, log)
	}

	if dataset == "" {
		dataset = cfg.Source.Dataset
	}

	result := service.ScreenBatch(ctx, entities, dataset)

	if err := writeResult(outputPath, result); err != nil {
		return fmt.Errorf("writing batch result: %w", err)
	}

	if result.Status == screening.BatchStatusFailed {
		return fmt.Errorf("batch %s failed: %d of %d records errored",
			result.JobID, result.FailedRecords, result.TotalRecords)
	}
	return nil
}

// readBatch decodes the submission file: a JSON array of name queries.
func readBatch(path string) ([]screening.NameQuery, error) {
	var reader *os.File
	if path == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		reader = f
	}

	var entities []screening.NameQuery
	if err := json.NewDecoder(reader).Decode(&entities); err != nil {
		return nil, err
	}
	for i := range entities {
		if entities[i].RowNumber == 0 {
			entities[i].RowNumber = i + 1
		}
		if entities[i].Type == "" {
			entities[i].Type = screening.EntityTypePerson
		}
	}
	return entities, nil
}

func writeResult(path string, result *screening.BatchJobResult) error {
	writer := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		writer = f
	}
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// serveOps exposes liveness and Prometheus metrics while a batch runs. It
// returns once ctx is cancelled and the listener has shut down.
func serveOps(ctx context.Context, addr string, log *zap.SugaredLogger) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnw("ops listener shutdown failed", "error", err)
		}
	}()

	log.Infow("ops listener started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warnw("ops listener stopped", "error", err)
	}
}
