package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"salestrends/internal/config"
	"salestrends/internal/metrics"
	"salestrends/internal/metrics/prompush"
	"salestrends/internal/pipeline"
	"salestrends/internal/report"

	// register all backends with the storage factory.
	// config specifies which to use but we build in support for all of them.
	_ "salestrends/internal/storage/postgres"
	_ "salestrends/internal/storage/sqlite"
)

// main is the entry point for the salestrends binary. It loads the pipeline
// config, optionally initializes a metrics backend, executes the load, and
// renders the four reports.
func main() {
	var (
		cfgPath           string
		yearFlg           int
		topNFlg           int
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sales_trends.json", "pipeline config JSON path")
	flag.IntVar(&yearFlg, "year", 0, "filter year for the single-year report (overrides config)")
	flag.IntVar(&topNFlg, "top", 0, "row limit for the top-periods report (overrides config)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}
	if yearFlg != 0 {
		p.Reports.Year = yearFlg
	}
	if topNFlg != 0 {
		p.Reports.TopN = topNFlg
	}

	issues := p.Validate()
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Flag wins over the METRICS_BACKEND env var; empty means disabled.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		b, err := prompush.NewBackend(p.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v backend=%v job=%v", gwURL, backendName, p.Job)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: source=%s storage=%s staging=%s fact=%s",
			p.Source.File.Path, p.Storage.Kind, p.Storage.DB.StagingTable, p.Storage.DB.FactTable)
	}

	store, err := pipeline.OpenStore(ctx, p)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer store.Close()

	sum, err := pipeline.RunWithStore(ctx, p, store)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("load: staged=%d skipped=%d facts=%d rejected=%d checksum=%016x elapsed=%s",
		sum.StagedRows, sum.SkippedSourceRows, sum.FactRows, sum.RejectedRows,
		sum.SourceChecksum, sum.Elapsed.Truncate(time.Millisecond))
	for reason, n := range sum.RejectionsByReason {
		log.Printf("load: rejected reason=%s count=%d", reason, n)
	}

	// The four reports are independent reads; run them concurrently now that
	// the load phase has completed.
	engine := report.NewEngine(store, p.Storage.DB.FactTable)

	var (
		monthly []report.MonthlyRow
		byYear  []report.MonthlyRow
		top     []report.TopPeriodRow
		nulls   []report.NullSensitivityRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { monthly, err = engine.MonthlyRevenue(gctx); return })
	g.Go(func() (err error) { byYear, err = engine.MonthlyRevenueForYear(gctx, p.Reports.Year); return })
	g.Go(func() (err error) { top, err = engine.TopPeriods(gctx, p.Reports.TopN); return })
	g.Go(func() (err error) { nulls, err = engine.NullSensitivity(gctx); return })
	if err := g.Wait(); err != nil {
		log.Fatalf("%v", err)
	}

	renderMonthly(os.Stdout, "Monthly Revenue & Order Volume (All Years)", monthly)
	renderMonthly(os.Stdout, fmt.Sprintf("Monthly Revenue & Order Volume (%d)", p.Reports.Year), byYear)
	renderTopPeriods(os.Stdout, fmt.Sprintf("Top %d Months by Sales", p.Reports.TopN), top)
	renderNullSensitivity(os.Stdout, "Monthly Revenue with NULL Handling", nulls)

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
