package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
	"marketdata-backfill/internal/infrastructure/broker"
	"marketdata-backfill/internal/logging"
)

type producerOptions struct {
	Class   ohlcv.AssetClass
	Symbols []string
	From    time.Time
	To      time.Time
	Window  time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("logger error: %v", err)
	}

	opts, err := parseOptions(os.Args[1:], time.Now())
	if err != nil {
		logger.Fatalf("invalid arguments: %v", err)
	}

	pub, err := broker.NewPublisher(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Fatalf("init publisher: %v", err)
	}
	defer pub.Close()

	jobs := broker.PlanJobs(broker.PlanConfig{Window: opts.Window}, opts.Class, opts.Symbols, opts.From, opts.To)
	for i, job := range jobs {
		if err := pub.Publish(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.WithField("published", i).Warn("producer interrupted")
				return
			}
			logger.Fatalf("publish %s %s: %v", job.Symbol, job.StartDate, err)
		}
	}

	logger.WithFields(logrus.Fields{
		"class":    opts.Class.String(),
		"symbols":  len(opts.Symbols),
		"jobs":     len(jobs),
		"exchange": cfg.RabbitMQ.Exchange,
	}).Info("backfill jobs published")
}

func parseOptions(args []string, now time.Time) (producerOptions, error) {
	fs := flag.NewFlagSet("producer", flag.ContinueOnError)
	class := fs.String("class", "crypto", "asset class: crypto or stocks")
	symbols := fs.String("symbols", "", "comma separated symbols (default: the class catalog)")
	symbolsFile := fs.String("symbols-file", "", `JSON file of the form {"symbols": [...]}`)
	start := fs.String("start", "", "first day, YYYY-MM-DD")
	end := fs.String("end", "", "end day, YYYY-MM-DD (default: today)")
	windowDays := fs.Int("window-days", 0, "split each symbol's range into jobs of at most this many days (0 keeps it whole)")
	if err := fs.Parse(args); err != nil {
		return producerOptions{}, err
	}

	var (
		opts producerOptions
		err  error
	)
	if opts.Class, err = ohlcv.ParseAssetClass(*class); err != nil {
		return producerOptions{}, err
	}
	switch {
	case *symbolsFile != "":
		if opts.Symbols, err = readSymbols(*symbolsFile); err != nil {
			return producerOptions{}, err
		}
	case *symbols != "":
		opts.Symbols = splitSymbols(*symbols)
	default:
		opts.Symbols = ohlcv.Symbols(opts.Class)
	}
	if len(opts.Symbols) == 0 {
		return producerOptions{}, errors.New("no symbols to enqueue")
	}

	if *start == "" {
		return producerOptions{}, errors.New("-start is required")
	}
	if opts.From, err = ohlcv.ParseDate(*start); err != nil {
		return producerOptions{}, err
	}
	opts.To = ohlcv.Day(now.UTC())
	if *end != "" {
		if opts.To, err = ohlcv.ParseDate(*end); err != nil {
			return producerOptions{}, err
		}
	}
	if !opts.From.Before(opts.To) {
		return producerOptions{}, fmt.Errorf("start %s must be before end %s", *start, opts.To.Format(ohlcv.DateLayout))
	}
	if *windowDays < 0 {
		return producerOptions{}, errors.New("window-days must not be negative")
	}
	opts.Window = time.Duration(*windowDays) * 24 * time.Hour
	return opts, nil
}

func splitSymbols(raw string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func readSymbols(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read symbols file: %w", err)
	}
	var payload struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse symbols file: %w", err)
	}
	symbols := make([]string, 0, len(payload.Symbols))
	for _, s := range payload.Symbols {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}
