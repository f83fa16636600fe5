package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/TrendingNews/internal/api"
	"github.com/LJTian/TrendingNews/internal/app"
	"github.com/LJTian/TrendingNews/internal/config"
	"github.com/LJTian/TrendingNews/internal/logging"
	"github.com/LJTian/TrendingNews/internal/scheduler"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init app failed")
	}
	defer a.Close()

	s, err := scheduler.New(cfg.CronSpec, a.Pipeline, cfg.StartupDelay, log.WithField("component", "scheduler"))
	if err != nil {
		log.WithError(err).Fatal("init scheduler failed")
	}
	s.Start()

	gin.SetMode(gin.ReleaseMode)
	// runs 为接口类型，未启用时必须传入 nil 接口而不是 nil 指针
	var runs api.RunHistory
	if a.Runs != nil {
		runs = a.Runs
	}
	server := api.NewServer(a.Articles, a.Pipeline, runs, log.WithField("component", "api"))
	opts := api.Options{}
	if cfg.BasicAuthEnabled() {
		opts.BasicAuthUser, opts.BasicAuthPass = cfg.BasicAuthUser, cfg.BasicAuthPass
	}

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: api.NewRouter(server, opts),
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("starting api server ...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server exit")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	s.Stop(shutdownCtx)
	log.Info("bye")
}
