package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/faceclient"
	"classattend/internal/queue"
	"classattend/internal/store"
)

// Worker consumes admitted submissions, calls the face-verification
// service, and records the outcome on the student's attendance row.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisPoolSize)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:selfies")
	}

	repo := attendance.NewRepository(db.Client)
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)

	// Check face service health on startup
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Printf("WARNING: Face service not available: %v", err)
			log.Println("Worker will retry verification when submissions arrive")
		} else {
			log.Println("Face service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for submissions...")
	for msg := range messages {
		if msg.Type != "selfie_verify" {
			continue
		}

		var job queue.SelfieJob
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Printf("bad job payload: %v", err)
			continue
		}
		log.Printf("verifying submission session=%s student=%s", job.SessionID, job.StudentID)

		result, err := face.VerifyFace(ctx, job.ClassID, job.SessionID, job.ImageURL, job.Rolls)
		if err != nil {
			log.Printf("face verification failed for session %s: %v", job.SessionID, err)
			_ = repo.SetVerification(ctx, job.SessionID, job.StudentID, attendance.VerificationFailed)
			continue
		}

		status := attendance.VerificationVerified
		if !attendance.VerificationAccepted(result) {
			status = attendance.VerificationRejected
		}

		if err := repo.SetVerification(ctx, job.SessionID, job.StudentID, status); err != nil {
			log.Printf("verification update failed for session %s: %v", job.SessionID, err)
			continue
		}
		log.Printf("submission session=%s student=%s -> %s", job.SessionID, job.StudentID, status)

		time.Sleep(10 * time.Millisecond) // Small delay between jobs
	}

	log.Println("worker stopped")
}
