package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/TrendingNews/internal/app"
	"github.com/LJTian/TrendingNews/internal/config"
	"github.com/LJTian/TrendingNews/internal/logging"
)

// 只执行一轮采集并把结果以 JSON 输出到 stdout，适合手动触发或放在外部定时任务里
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
	// stdout 留给结果
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init app failed")
	}
	defer a.Close()

	res, runErr := a.Pipeline.Run(ctx)
	if res != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.WithError(err).Error("encode result")
		}
	}
	if runErr != nil {
		a.Close()
		os.Exit(1)
	}
}
