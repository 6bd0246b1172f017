// Package main is the worker entry point: the payment pipeline consumer,
// the notification dispatcher and the cron scheduler.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"tappay/internal/chain"
	"tappay/internal/config"
	"tappay/internal/queue"
	"tappay/internal/realtime"
	"tappay/internal/repositories"
	"tappay/internal/scheduler"
	"tappay/internal/services/notifier"
	"tappay/internal/services/pipeline"

	"github.com/hibiken/asynq"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			sqlDB.Close()
		}
		repositories.CacheService.Close()
	}()

	redisOpt := queue.NewRedisOpt()
	queueClient := queue.NewClient(redisOpt)
	defer queueClient.Close()

	cardRepo := repositories.NewCardRepository(repositories.DB)
	userRepo := repositories.NewUserRepository(repositories.DB)
	transactionRepo := repositories.NewTransactionRepository(repositories.DB)

	chainClient := chain.NewRPCClient(config.DefaultChainConfig())
	broadcaster := realtime.NewPublisher(repositories.CacheService.Client())
	producer := notifier.NewProducer(queueClient)
	pipelineCfg := config.DefaultPipelineConfig()

	worker := pipeline.NewWorker(
		transactionRepo,
		cardRepo,
		userRepo,
		repositories.CacheService,
		chainClient,
		broadcaster,
		producer,
		pipelineCfg,
	)
	paymentMux := asynq.NewServeMux()
	paymentMux.HandleFunc(queue.TaskPaymentProcess, worker.ProcessTask)
	paymentServer := queue.NewPaymentServer(redisOpt, pipelineCfg)

	feed := notifier.NewFeed(repositories.CacheService, config.DefaultCacheTTLConfig())
	dispatcher := notifier.NewDispatcher(userRepo, feed, broadcaster, notifier.NewLogSideChannel())
	notifierMux := asynq.NewServeMux()
	dispatcher.Register(notifierMux)
	notifierServer := queue.NewNotifierServer(redisOpt)

	sched := scheduler.New(cardRepo, repositories.CacheService, producer)
	sched.Start()

	if err := paymentServer.Start(paymentMux); err != nil {
		log.Fatalf("Failed to start payment worker: %v", err)
	}
	if err := notifierServer.Start(notifierMux); err != nil {
		log.Fatalf("Failed to start notifier worker: %v", err)
	}
	log.Println("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down workers")
	paymentServer.Shutdown()
	notifierServer.Shutdown()
	<-sched.Stop().Done()
}
