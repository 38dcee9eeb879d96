/**
 * Page-Code Scan Worker - Main Entry Point
 *
 * Go worker for extracting QR codes and linear barcodes from scanned
 * answer-sheet PDFs.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed scan job queue
 * - Four-phase scan pipeline per page: low-scale detection pass,
 *   region construction, ROI decode ladder, full-page fallback ladder
 * - Tesseract digit recovery for pages the ladder cannot finish
 * - PostgreSQL persistence plus per-batch CSV output
 * - Redis pub/sub progress events for the upload UI
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/divyamanand/campx-qr-client-sub001/internal/clients"
	"github.com/divyamanand/campx-qr-client-sub001/internal/config"
	"github.com/divyamanand/campx-qr-client-sub001/internal/processor"
	"github.com/divyamanand/campx-qr-client-sub001/internal/progress"
	"github.com/divyamanand/campx-qr-client-sub001/internal/queue"
	"github.com/divyamanand/campx-qr-client-sub001/internal/scan"
	"github.com/divyamanand/campx-qr-client-sub001/internal/storage"
	"github.com/divyamanand/campx-qr-client-sub001/internal/structure"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.campx"); err != nil {
		log.Printf("Warning: .env.campx not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Page-code scan worker starting...")
	log.Printf("Configuration loaded: Redis=%s, PostgreSQL=%s, Workers=%d, PageWorkers=%d",
		cfg.RedisURL, cfg.DatabaseURL, cfg.WorkerConcurrency, cfg.PageWorkers)

	// Initialize storage manager (PostgreSQL + batch CSV)
	log.Printf("Connecting to storage (PostgreSQL + CSV)...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.CSVOutputDir,
		time.Now().Format("2006-01-02"),
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	defer storageManager.Close()
	log.Printf("Storage manager initialized")

	// Initialize progress publisher (non-fatal if Redis pub/sub is down)
	var publisher *progress.Publisher
	publisher, err = progress.NewPublisher(cfg.RedisURL, cfg.ProgressChannel)
	if err != nil {
		log.Printf("WARNING: progress publisher unavailable: %v. Pages will not stream live updates.", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Initialize review client when a review service is configured
	var reviewClient *clients.ReviewClient
	if cfg.ReviewServiceURL != "" {
		reviewClient = clients.NewReviewClient(cfg.ReviewServiceURL)
	} else {
		log.Printf("WARNING: Review service URL not configured. Incomplete pages will only be flagged in the database.")
	}

	// Load the default expected-codes structure when one is configured.
	// Jobs can still carry their own structure in the payload.
	var defaultStructure *structure.Structure
	if cfg.StructurePath != "" {
		defaultStructure, err = structure.Load(cfg.StructurePath)
		if err != nil {
			log.Fatalf("Failed to load structure document %s: %v", cfg.StructurePath, err)
		}
		log.Printf("Structure document loaded: %s (%d explicit page(s))",
			cfg.StructurePath, len(defaultStructure.PageNumbers()))
	}

	// Initialize scan processor
	log.Printf("Initializing scan processor...")
	proc, err := processor.NewScanProcessor(&processor.ProcessorConfig{
		StorageManager: storageManager,
		Publisher:      publisher,
		ReviewClient:   reviewClient,
		Structure:      defaultStructure,
		LadderConfig: scan.LadderConfig{
			MinScale:     cfg.MinScale,
			InitialScale: cfg.InitialScale,
			MaxScale:     cfg.MaxScale,
			ScaleStep:    cfg.ScaleStep,
			DetectScale:  cfg.DetectScale,
			Rotation:     cfg.Rotation,
		},
		PageWorkers: cfg.PageWorkers,
		MaxFileSize: cfg.MaxFileSize,
		OCRRecovery: cfg.OCRRecovery,
	})
	if err != nil {
		log.Fatalf("Failed to initialize scan processor: %v", err)
	}
	defer proc.Close()
	log.Printf("Scan processor initialized")

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	queueConsumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         "pagescan:jobs",
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		ProcessingTimeout: time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}
	log.Printf("Queue consumer initialized with concurrency=%d", cfg.WorkerConcurrency)

	// Start queue consumer
	if err := queueConsumer.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("Page-Code Scan Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: pagescan:jobs")
	log.Printf("Workers: %d (x%d page workers)", cfg.WorkerConcurrency, cfg.PageWorkers)
	log.Printf("Scale ladder: %.1f -> %.1f (step %.1f, detect %.1f)",
		cfg.InitialScale, cfg.MaxScale, cfg.ScaleStep, cfg.DetectScale)
	log.Printf("Rotation fallback: %v, OCR recovery: %v", cfg.Rotation, cfg.OCRRecovery)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("Stopping queue consumer...")
	if err := queueConsumer.Stop(ctx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

// healthCheck verifies the authoritative store is reachable
func healthCheck(sm *storage.StorageManager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sm.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}
