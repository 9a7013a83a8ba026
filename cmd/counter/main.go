package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"

	"github.com/LdDl/people-counter/bridge"
	"github.com/LdDl/people-counter/internal/config"
	"github.com/LdDl/people-counter/internal/monitoring"
	"github.com/LdDl/people-counter/internal/pipeline"
	"github.com/LdDl/people-counter/mot"
	"github.com/LdDl/people-counter/report"
	"github.com/LdDl/people-counter/source"
)

var (
	configPath = flag.String("config", "", "Path to YAML configuration file")
	inputPath  = flag.String("input", "", "Path to detection trace (YAML documents, one per frame)")
	busID      = flag.String("bus", "", "Bus identifier, overrides report.bus_id")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

// run owns every resource of the counter, so deferred cleanup happens before main exits
func run() error {
	if *inputPath == "" {
		return errors.New("-input is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *busID != "" {
		cfg.Report.BusID = *busID
	}
	if cfg.Report.BusID == "" {
		return errors.New("bus identifier is not set: use -bus or report.bus_id")
	}

	reader, err := source.Open(*inputPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lineY := cfg.Counter.ResolvedLineY()
	tally := report.NewTally()
	stream := pipeline.NewStream(
		cfg.Report.BusID,
		pipeline.StreamConfig{
			LineY:         lineY,
			SkipFrames:    cfg.Detector.SkipFrames,
			Class:         cfg.Detector.Class,
			MinConfidence: cfg.Detector.Confidence,
		},
		cfg.Tracker.NewTracker(),
		mot.NewCrossingCounter(),
		bridge.NewKalmanBridge(cfg.Detector.FrameInterval.Seconds()),
		tally,
	)
	sender := report.NewHTTPSender(cfg.Report.ServerURL, &http.Client{Timeout: cfg.Report.Timeout})
	reporter := report.NewReporter(cfg.Report.BusID, cfg.Report.Location, cfg.Report.UpdateInterval, cfg.Report.Timeout, tally, sender)

	monitoring.Logf("Counting '%s' on %s: line_y=%.1f, matching=%s, skip_frames=%d", cfg.Detector.Class, cfg.Report.BusID, lineY, cfg.Tracker.MatchingAlgorithm(), cfg.Detector.SkipFrames)

	reportCtx, stopReport := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(reportCtx)
	}()

	runErr := stream.Run(ctx, reader)
	stopReport()
	wg.Wait()

	totals := tally.Totals()
	monitoring.Logf("Processed %d frames. Entries: %d, exits: %d, on board: %d", stream.Frames(), totals.Entries, totals.Exits, totals.Occupancy)
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}
