package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"tradecrew/internal/app"
	brcfg "tradecrew/internal/config"
	"tradecrew/internal/logger"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "tradecrew",
		Usage: "Stream multi-agent trading analysis and replay it over history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Sources: cli.EnvVars(brcfg.EnvConfigPath),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			backtestCommand(),
		},
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the analysis HTTP service",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, closeLogs, err := loadConfig(cmd, os.Stdout)
			if err != nil {
				return err
			}
			defer closeLogs()

			a, err := app.NewApp(cfg)
			if err != nil {
				return fmt.Errorf("初始化应用失败: %w", err)
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}

// loadConfig 读取配置并按配置初始化日志；console 是日志的终端输出。
func loadConfig(cmd *cli.Command, console io.Writer) (*brcfg.Config, func(), error) {
	cfg, err := brcfg.Load(brcfg.ResolvePath(cmd.String("config")))
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置失败: %w", err)
	}
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	logger.SetOutput(console)
	logger.SetFormat(cfg.App.LogFormat)
	logFile, err := setupLogOutput(cfg.App.LogPath, console)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志文件失败: %w", err)
	}
	if logFile != nil {
		files = append(files, logFile)
	}
	transcript, err := setupTranscriptOutput(cfg.App.TranscriptPath)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("初始化阶段转录失败: %w", err)
	}
	if transcript != nil {
		files = append(files, transcript)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，流水线=%s）", cfg.App.Env, cfg.Pipeline.BaseURL)
	return cfg, closeAll, nil
}

func setupLogOutput(path string, console io.Writer) (*os.File, error) {
	file, err := openAppend(path)
	if err != nil || file == nil {
		return nil, err
	}
	mw := io.MultiWriter(console, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}

func setupTranscriptOutput(path string) (*os.File, error) {
	file, err := openAppend(path)
	if err != nil || file == nil {
		return nil, err
	}
	logger.SetTranscriptWriter(file)
	return file, nil
}

func openAppend(path string) (*os.File, error) {
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
	return os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
