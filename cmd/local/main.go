package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"eda-backend/cmd"
	"eda-backend/internal/api"
	"eda-backend/internal/core"
	"eda-backend/internal/database"
	"eda-backend/internal/messaging"
	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"
	"eda-backend/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Single process mode: sqlite database, filesystem object store, and an in
// memory queue. No external services except the completion API.
type Config struct {
	Root string `env:"ROOT" envDefault:"./eda-data"`
	Port int    `env:"PORT" envDefault:"3001"`

	SignificanceThreshold float64 `env:"SIGNIFICANCE_THRESHOLD" envDefault:"0.05"`

	LLM cmd.LLMConfig
}

const (
	datasetBucket = "datasets"
	reportBucket  = "reports"
)

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "eda-backend.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.GetMigrator(db).Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

// createQueue republishes jobs that were queued when the process last exited.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var jobs []database.ProfileJob
	if err := db.Where("status = ?", database.JobQueued).Find(&jobs).Error; err != nil {
		log.Fatalf("Failed to fetch queued jobs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	for _, job := range jobs {
		if err := queue.PublishProfileTask(context.Background(), messaging.ProfileTaskPayload{
			JobId: job.Id,
		}); err != nil {
			log.Fatalf("Failed to republish profile task: %v", err)
		}
	}

	return queue
}

func createServer(db *gorm.DB, objectStore storage.ObjectStore, queue messaging.Publisher, composer *narrative.Composer, cfg Config) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, queue, objectStore, composer, datasetBucket, reportBucket, cfg.LLM.Model)
	chatHandler := api.NewChatService(db, cfg.LLM.Model, cfg.LLM.APIKey, cfg.LLM.BaseURL)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
		chatHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port)

	db := createDatabase(cfg.Root)

	objectStore, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	for _, bucket := range []string{datasetBucket, reportBucket} {
		if err := objectStore.CreateBucket(context.Background(), bucket); err != nil {
			log.Fatalf("Failed to create bucket %s: %v", bucket, err)
		}
	}

	queue := createQueue(db)

	composer := narrative.NewComposer(cmd.CreateLLM(cfg.LLM))
	composer.SignificanceThreshold = cfg.SignificanceThreshold

	worker := core.NewTaskProcessor(db, objectStore, queue, queue, profile.NewEngine(), composer, reportBucket, filepath.Join(cfg.Root, "work"))

	server := createServer(db, objectStore, queue, composer, cfg)

	slog.Info("starting worker")
	go worker.Start()

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
