// Avantix Runner — сервис выполнения flow.
//
// Runner:
//   - Выполняет не более одного run за раз
//   - Принимает команды через HTTP API и очередь RabbitMQ (опционально)
//   - Запускает flow по расписаниям из SCHEDULES_FILE (опционально)
//   - Берёт flow из Postgres хранилища (опционально) и из FLOWS_DIR
//   - Публикует события run в RabbitMQ и метрики в /metrics
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/avantix/internal/actions"
	"github.com/shaiso/avantix/internal/api"
	"github.com/shaiso/avantix/internal/engine"
	"github.com/shaiso/avantix/internal/loader"
	"github.com/shaiso/avantix/internal/mq"
	"github.com/shaiso/avantix/internal/repo"
	"github.com/shaiso/avantix/internal/runner"
	"github.com/shaiso/avantix/internal/scheduler"
	"github.com/shaiso/avantix/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger, logCloser := telemetry.SetupLogger()
	defer logCloser.Close()
	logger.Info("starting avantix-runner")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flowsDir := os.Getenv("FLOWS_DIR")
	if flowsDir == "" {
		flowsDir = "./flows"
	}
	flows := loader.New(flowsDir)

	registry := actions.DefaultRegistry(actions.Options{})
	logger.Info("actions registered", "count", registry.Count(), "ids", registry.IDs())
	eng := engine.New(engine.Config{Registry: registry, Logger: logger})
	metrics := telemetry.NewMetrics(nil)

	// Postgres: хранилище flow, опционально
	var source runner.FlowSource = runner.DirSource{Loader: flows}
	var store api.FlowStore
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		pool, err := repo.NewPool(ctx, dbURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		flowRepo := repo.NewFlowRepo(pool)
		if err := flowRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare flow store", "error", err)
			os.Exit(1)
		}
		logger.Info("flow store connected")

		source = runner.ChainSource{runner.StoreSource{Repo: flowRepo}, runner.DirSource{Loader: flows}}
		store = flowRepo
	}

	// RabbitMQ: команды и события, опционально
	var mqConn *mq.Connection
	var eventSink engine.Sink
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL != "" {
		conn, err := mq.NewConnection(mqURL, "avantix-runner", logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running without queue", "error", err)
		} else {
			mqConn = conn
			defer mqConn.Close()
			logger.Info("RabbitMQ connected")

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			} else {
				logger.Debug("topology ready" + mq.TopologyInfo())
			}
			eventSink = mq.NewEventSink(mq.NewPublisher(mqConn, logger), logger)
		}
	}

	runs := runner.New(runner.Config{
		Engine: eng,
		Source: source,
		Sink:   engine.NewMultiSink(metrics, eventSink),
		Logger: logger,
	})

	var consumer *mq.Consumer
	if mqConn != nil {
		consumer = mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueueRunnerCommands),
			Handler: mq.NewCommandHandler(runs, logger),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	// Расписания, опционально
	var sched *scheduler.Scheduler
	var schedules api.Schedules
	if path := os.Getenv("SCHEDULES_FILE"); path != "" {
		list, err := scheduler.LoadFile(path)
		if err != nil {
			logger.Error("failed to load schedules", "error", err)
			os.Exit(1)
		}
		sched, err = scheduler.New(scheduler.Config{
			Schedules: list,
			Starter:   runs,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start(ctx)
		schedules = sched
	}

	handler := api.NewHandler(api.Config{
		Runs:      runs,
		Flows:     flows,
		Registry:  registry,
		Store:     store,
		Schedules: schedules,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8090"
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr, "flows_dir", flows.Dir())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	if sched != nil {
		sched.Stop()
	}
	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Текущий шаг доходит до конца, следующий не запускается
	if run := runs.Current(); run != nil {
		if err := runs.Cancel(run.ID); err == nil {
			logger.Info("waiting for current run", "run_id", run.ID)
		}
		if _, err := runs.Wait(shutdownCtx); err != nil {
			logger.Warn("run did not finish before shutdown", "run_id", run.ID, "error", err)
		}
	}

	logger.Info("avantix-runner stopped")
}
