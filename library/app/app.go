package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/config"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/handler"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/repository"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/server"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/service"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/internal/worker"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/library/migrations"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth0"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/circuit_breaker"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/kafka"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/logger"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/metrics"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/postgres"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/redislock"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	m := metrics.New()

	var locker service.Locker
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		if rdb, err = redislock.NewClient(ctx, cfg.Redis); err != nil {
			log.Warn("redis unavailable, fine generation runs without the cross-replica lock", zap.Error(err))
		} else {
			locker = redislock.New(rdb)
		}
	}

	var repoOpts []repository.Option
	var producer sarama.SyncProducer
	var group sarama.ConsumerGroup
	if len(cfg.Kafka.Addrs) > 0 {
		producer, err = kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		cb := circuit_breaker.New(cfg.Breaker, circuit_breaker.WithStateChange(func(from, to circuit_breaker.Status) {
			log.Warn("kafka breaker", zap.Stringer("from", from), zap.Stringer("to", to))
		}))
		notifier := service.NewNotifier(kafka.NewEnqueuer(producer, cb), m, log)
		repoOpts = append(repoOpts, repository.WithNotificationSink(notifier))

		group, err = kafka.NewConsumer(cfg.Kafka, kafka.LibraryConsumerGroup)
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
	}

	repo, err := repository.NewRepository(db, log, repoOpts...)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}

	fineSvc := service.NewFineService(repo, cfg.Policy.Fines, locker, log)
	reservationSvc := service.NewReservationService(repo, fineSvc, cfg.Policy, log)
	loanSvc := service.NewLoanService(repo, cfg.Policy, log)
	notificationSvc := service.NewNotificationService(repo, log)

	if group != nil {
		go kafka.Consume(ctx, group, handler.NewConsumer(loanSvc.ReturnLoan, log), log, kafka.ReturnsTopic)
	}

	if cfg.Policy.Scheduler.Enabled {
		w, err := worker.New(cfg.Policy.Scheduler, log, []worker.Job{
			fineSvc.CorrectFinesForReturnedLoans,
			fineSvc.GenerateAutomaticFines,
			reservationSvc.ExpireOverduePickups,
		}, worker.WithMetrics(m))
		if err != nil {
			log.Fatal("worker", zap.Error(err))
		}
		go w.Run(ctx)
	}

	hOpts := []handler.Option{handler.WithMetrics(m), handler.WithJWTKey(cfg.Auth.JWTKey)}
	if cfg.Auth.SSO.Enabled() {
		sso, err := auth0.MiddleWareWithConfig(cfg.Auth.SSO)
		if err != nil {
			log.Fatal("auth0", zap.Error(err))
		}
		hOpts = append(hOpts, handler.WithSSO(sso))
	}
	h := handler.New(handler.Services{
		Fines:         fineSvc,
		Reservations:  reservationSvc,
		Loans:         loanSvc,
		Notifications: notificationSvc,
	}, log, hOpts...)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	if group != nil {
		if err = group.Close(); err != nil {
			log.Warn("kafka consumer close", zap.Error(err))
		}
	}
	if producer != nil {
		if err = producer.Close(); err != nil {
			log.Warn("kafka producer close", zap.Error(err))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
