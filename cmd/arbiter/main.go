package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"arbiter/internal/app"
	arbcfg "arbiter/internal/config"
	"arbiter/internal/logger"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "单次评估模式：读取快照文件，结果输出到 stdout")
	flag.Parse()

	cfgPath := os.Getenv("ARBITER_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，profiles=%s）", cfg.App.Env, cfg.Profiles.Path)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	if *snapshotPath != "" {
		if err := evaluateOnce(application, *snapshotPath); err != nil {
			log.Fatalf("评估失败: %v", err)
		}
		application.Close()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := application.Run(ctx); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

// loadConfig 配置文件缺失时退回内置默认（纯一次评估场景无需配置）。
func loadConfig(path string) (*arbcfg.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && os.Getenv("ARBITER_CONFIG") == "" {
			return arbcfg.Default(), nil
		}
		return nil, err
	}
	return arbcfg.Load(path)
}

// evaluateOnce 读取快照文件，评估后把结果 JSON 打到 stdout。
func evaluateOnce(application *app.App, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := application.Engine().Run(raw)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
