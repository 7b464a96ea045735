package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"tradecrew/internal/app"
	"tradecrew/internal/backtest"
	"tradecrew/internal/calendar"
	"tradecrew/internal/logger"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay the pipeline day by day and print the result as JSON",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "symbol",
				Aliases: []string{"s"},
				Usage:   "Ticker symbol; repeat for several",
			},
			&cli.StringFlag{
				Name:  "index",
				Usage: "Backtest every constituent of an index listed in the calendar file",
			},
			&cli.StringFlag{
				Name:     "start",
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "end",
				Usage:    "End date in `YYYY-MM-DD` format",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "market",
				Aliases: []string{"m"},
				Usage:   "Market: US, HK or A-share (defaults to backtest.default_market)",
			},
			&cli.StringFlag{
				Name:  "model",
				Usage: "Model preset name",
			},
			&cli.StringSliceFlag{
				Name:  "analysts",
				Usage: "Analyst selection, e.g. market,news",
			},
			&cli.FloatFlag{
				Name:  "delay",
				Usage: "Seconds to wait after each trading day (overrides backtest.api_call_delay_seconds)",
				Value: -1,
			},
		},
		Action: runBacktest,
	}
}

func runBacktest(ctx context.Context, cmd *cli.Command) error {
	cfg, closeLogs, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLogs()
	if delay := cmd.Float("delay"); delay >= 0 {
		cfg.Backtest.APICallDelaySeconds = delay
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	defer a.Close()

	market := cmd.String("market")
	if strings.TrimSpace(market) == "" {
		market = cfg.Backtest.DefaultMarket
	}
	m, err := calendar.ParseMarket(market)
	if err != nil {
		return err
	}
	symbols, err := resolveSymbols(a.Calendars(), m, cmd.StringSlice("symbol"), cmd.String("index"))
	if err != nil {
		return err
	}
	model, provider := app.ModelResolver(cfg.Pipeline)(cmd.String("model"))
	tmpl := backtest.Request{
		Market:    m,
		StartDate: cmd.String("start"),
		EndDate:   cmd.String("end"),
		Analysts:  splitList(cmd.StringSlice("analysts")),
		Model:     model,
		Provider:  provider,
	}
	hooks := backtest.Hooks{OnProgress: newProgress()}

	var out any
	if len(symbols) == 1 {
		tmpl.Symbol = symbols[0]
		res, err := a.Engine().Run(ctx, tmpl, hooks)
		if err != nil {
			return err
		}
		logger.InfoBlock(res.Metrics.Report())
		out = res
	} else {
		results, err := a.Engine().RunMany(ctx, tmpl, symbols, hooks)
		if err != nil {
			return err
		}
		out = results
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func resolveSymbols(cache *calendar.Cache, market calendar.Market, symbols []string, index string) ([]string, error) {
	out := splitList(symbols)
	if strings.TrimSpace(index) != "" {
		members, ok := cache.Constituents(market, index)
		if !ok {
			return nil, fmt.Errorf("index %s has no constituents for market %s", index, market)
		}
		out = append(out, members...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one --symbol or --index is required")
	}
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out, nil
}

func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// newProgress 返回驱动 stderr 进度条的回调；每个标的开始时重建进度条。
func newProgress() func(current, total int, date string) {
	var bar *progressbar.ProgressBar
	return func(current, total int, date string) {
		if bar == nil || current == 1 {
			if bar != nil {
				_ = bar.Finish()
			}
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		bar.Describe(date)
		_ = bar.Set(current)
	}
}
