package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"evaldash/internal/config"
	"evaldash/internal/evaluation"
	"evaldash/internal/notify"
	"evaldash/internal/queue"
	"evaldash/internal/store"
)

// Worker drains the ingest queue: evaluation submissions are persisted
// and the owning professor's dashboard is notified; deadline updates are
// persisted and broadcast to every dashboard.
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
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "evaldash:submissions")
	}

	var bus notify.Bus
	if cfg.NotifyBackend == "memory" {
		bus = notify.NewInMemory()
	} else {
		bus = notify.NewRedisBus(redisClient.Client)
	}

	repo := evaluation.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case "submission":
			ingestSubmission(ctx, repo, bus, msg.Body)
		case "deadline":
			ingestDeadline(ctx, repo, bus, msg.Body)
		default:
			log.Printf("skipping message with unknown type %q", msg.Type)
		}
	}

	log.Println("worker stopped")
}

// ingestSubmission stores one evaluation result document and pings the
// professor's result channel. Malformed documents are logged and
// dropped; the queue must keep moving.
func ingestSubmission(ctx context.Context, repo *evaluation.Repository, bus notify.Bus, body []byte) {
	var res evaluation.Result
	if err := json.Unmarshal(body, &res); err != nil {
		log.Printf("bad submission payload: %v", err)
		return
	}
	if res.ProfessorEmail == "" {
		log.Printf("submission without professor email, dropping")
		return
	}

	id, err := repo.InsertResult(ctx, res)
	if err != nil {
		log.Printf("insert result failed: %v", err)
		return
	}
	log.Printf("stored result %s for %s", id, res.ProfessorEmail)

	if err := bus.Publish(ctx, notify.Event{Topic: notify.ResultsTopic(res.ProfessorEmail), Body: []byte(id)}); err != nil {
		log.Printf("result notify failed: %v", err)
	}
}

// ingestDeadline stores the deadline record and broadcasts the full
// document so dashboards can transition without a re-query.
func ingestDeadline(ctx context.Context, repo *evaluation.Repository, bus notify.Bus, body []byte) {
	var d evaluation.Deadline
	if err := json.Unmarshal(body, &d); err != nil {
		log.Printf("bad deadline payload: %v", err)
		return
	}

	if err := repo.SetDeadline(ctx, d); err != nil {
		log.Printf("store deadline failed: %v", err)
		return
	}
	log.Printf("deadline updated: period %s", d.Period())

	if err := bus.Publish(ctx, notify.Event{Topic: notify.TopicDeadline, Body: body}); err != nil {
		log.Printf("deadline notify failed: %v", err)
	}
}
