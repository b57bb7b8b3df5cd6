package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"marketdata-backfill/internal/bootstrap"
	"marketdata-backfill/internal/config"
	"marketdata-backfill/internal/domain/entity/ohlcv"
	infracache "marketdata-backfill/internal/infrastructure/cache"
	"marketdata-backfill/internal/logging"
)

type dataOptions struct {
	Classes     []ohlcv.AssetClass
	Symbols     []string
	From        time.Time
	To          time.Time
	Concurrency int
	SchemaOnly  bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}
	logger.WithField("store", cfg.Store.Driver).Info("schema ready")
	if opts.SchemaOnly {
		return
	}

	redisClient, err := infracache.Open(ctx, cfg.Redis)
	if err != nil {
		logger.Fatalf("open cache: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	ingestion := infracache.NewInvalidator(redisClient, logger).Wrap(bootstrap.NewIngestion(cfg, store, logger))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	var failed atomic.Int32
	for _, class := range opts.Classes {
		symbols := opts.Symbols
		if len(symbols) == 0 {
			symbols = ohlcv.Symbols(class)
		}
		for _, symbol := range symbols {
			class, symbol := class, symbol
			g.Go(func() error {
				records, err := ingestion.Load(gctx, class, symbol, opts.From, opts.To)
				log := logger.WithFields(logrus.Fields{"class": class.String(), "symbol": symbol})
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					log.WithError(err).Error("backfill failed")
					failed.Add(1)
					return nil
				}
				log.WithField("records", len(records)).Info("backfill done")
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("backfill stopped with error: %v", err)
	}
	if n := failed.Load(); n > 0 {
		logger.Fatalf("%d backfill jobs failed", n)
	}
	logger.Info("backfill finished")
}

func parseOptions(args []string, now time.Time) (dataOptions, error) {
	fs := flag.NewFlagSet("data", flag.ContinueOnError)
	class := fs.String("class", "all", "asset class to backfill: crypto, stocks or all")
	symbols := fs.String("symbols", "", "comma separated symbols (default: the class catalog)")
	start := fs.String("start", "", "first day, YYYY-MM-DD")
	end := fs.String("end", "", "end day, YYYY-MM-DD (default: today)")
	concurrency := fs.Int("concurrency", 1, "symbols loaded in parallel")
	schemaOnly := fs.Bool("schema-only", false, "create tables and exit")
	if err := fs.Parse(args); err != nil {
		return dataOptions{}, err
	}

	opts := dataOptions{SchemaOnly: *schemaOnly, Concurrency: *concurrency}
	if opts.SchemaOnly {
		return opts, nil
	}
	if opts.Concurrency <= 0 {
		return dataOptions{}, errors.New("concurrency must be positive")
	}

	classes, err := resolveClasses(*class)
	if err != nil {
		return dataOptions{}, err
	}
	opts.Classes = classes
	opts.Symbols = parseSymbols(*symbols)
	if len(opts.Symbols) > 0 && len(classes) > 1 {
		return dataOptions{}, errors.New("-symbols needs a single -class")
	}

	if *start == "" {
		return dataOptions{}, errors.New("-start is required")
	}
	if opts.From, err = ohlcv.ParseDate(*start); err != nil {
		return dataOptions{}, err
	}
	opts.To = ohlcv.Day(now.UTC())
	if *end != "" {
		if opts.To, err = ohlcv.ParseDate(*end); err != nil {
			return dataOptions{}, err
		}
	}
	if opts.From.After(opts.To) {
		return dataOptions{}, fmt.Errorf("start %s is after end %s", *start, opts.To.Format(ohlcv.DateLayout))
	}
	return opts, nil
}

func resolveClasses(raw string) ([]ohlcv.AssetClass, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return []ohlcv.AssetClass{ohlcv.ClassCrypto, ohlcv.ClassStock}, nil
	}
	class, err := ohlcv.ParseAssetClass(raw)
	if err != nil {
		return nil, err
	}
	return []ohlcv.AssetClass{class}, nil
}

func parseSymbols(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
