package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"eda-backend/cmd"
	"eda-backend/internal/core"
	"eda-backend/internal/database"
	"eda-backend/internal/messaging"
	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"
	"eda-backend/internal/storage"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string `env:"RABBITMQ_URL,notEmpty,required"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL" envDefault:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	S3Region          string `env:"AWS_REGION" envDefault:""`
	ReportBucketName  string `env:"REPORT_BUCKET_NAME" envDefault:"reports"`
	WorkDir           string `env:"WORK_DIR" envDefault:"/tmp/eda-worker"`

	SignificanceThreshold float64 `env:"SIGNIFICANCE_THRESHOLD" envDefault:"0.05"`

	LLM cmd.LLMConfig
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	objectStore, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create object store: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	reciever, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to create RabbitMQ receiver: %v", err)
	}

	composer := narrative.NewComposer(cmd.CreateLLM(cfg.LLM))
	composer.SignificanceThreshold = cfg.SignificanceThreshold

	worker := core.NewTaskProcessor(db, objectStore, publisher, reciever, profile.NewEngine(), composer, cfg.ReportBucketName, cfg.WorkDir)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutdown signal received, stopping worker")
		worker.Stop()
	}()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	worker.Start()

	log.Println("Worker process stopped.")
}
