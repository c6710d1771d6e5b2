package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"ridemetrics/internal/aggregate"
	"ridemetrics/internal/auth"
	"ridemetrics/internal/export"
	"ridemetrics/internal/metrics"
	"ridemetrics/internal/service"
	"ridemetrics/internal/store"
)

const dateLayout = "2006-01-02"

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	addr := fs.String("addr", auth.DefaultCallbackAddr, "callback listen address")
	fs.Parse(args)

	if err := a.cfg.ValidateStrava(); err != nil {
		return err
	}

	login := &auth.Login{
		Config: a.oauthConfig(),
		Addr:   *addr,
		Prompt: func(authURL string) {
			fmt.Println("To authenticate with Strava, open this URL in your browser:")
			fmt.Printf("\n  %s\n\n", authURL)
			fmt.Println("Waiting for authentication...")
		},
	}
	res, err := login.Run(ctx)
	if err != nil {
		return fmt.Errorf("authentication: %w", err)
	}
	if err := a.saveToken(res.Token); err != nil {
		return fmt.Errorf("saving auth: %w", err)
	}
	fmt.Printf("Successfully authenticated as athlete %d!\n", res.AthleteID)
	return nil
}

func (a *app) sync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	batch := fs.Int("streams", 0, "max rides to fetch streams for (0 = default batch)")
	compute := fs.Bool("compute", true, "compute metrics for new rides afterwards")
	fs.Parse(args)

	client, err := a.stravaClient(ctx)
	if err != nil {
		return err
	}

	res, err := service.NewSyncService(client, a.db, a.logger).Sync(ctx, *batch)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %s activities, stored %s rides, %s with streams\n",
		humanize.Comma(int64(res.ActivitiesFetched)),
		humanize.Comma(int64(res.RidesStored)),
		humanize.Comma(int64(res.StreamsFetched)))
	for _, e := range res.Errors {
		a.logger.Warn("sync error", "error", e)
	}

	if !*compute {
		return nil
	}
	return a.computeAll(ctx, nil, false)
}

func (a *app) importFiles(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Parse(args)

	var paths []string
	for _, arg := range fs.Args() {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return errors.New("usage: ridemetrics import <file.fit>...")
	}

	res := service.NewImportService(a.db, a.logger).ImportFiles(paths)
	for _, act := range res.Imported {
		fmt.Printf("%s  %s  %s  %s\n", act.ID, act.StartTime.Format(dateLayout), act.Name, formatDuration(act.DurationSec))
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d of %d files failed: %w", len(res.Errors), len(paths), errors.Join(res.Errors...))
	}
	return nil
}

func (a *app) compute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compute", flag.ExitOnError)
	metric := fs.String("metric", "", "metric key (default: all)")
	activity := fs.String("activity", "", "compute for one activity and print the result")
	force := fs.Bool("force", false, "ignore cached results")
	fs.Parse(args)

	var keys []metrics.Key
	if *metric != "" {
		k, err := metrics.ParseKey(*metric)
		if err != nil {
			return err
		}
		keys = []metrics.Key{k}
	}

	if *activity == "" {
		return a.computeAll(ctx, keys, *force)
	}
	if len(keys) == 0 {
		keys = metrics.Keys()
	}

	svc := service.NewComputeService(a.db, a.cfg, a.logger)
	if err := svc.RegisterDefinitions(); err != nil {
		return err
	}
	out := make(map[metrics.Key]metrics.Result, len(keys))
	for _, k := range keys {
		r, _, err := svc.Compute(ctx, *activity, k, *force)
		if err != nil {
			return err
		}
		out[k] = r
	}
	return printJSON(out)
}

func (a *app) computeAll(ctx context.Context, keys []metrics.Key, force bool) error {
	svc := service.NewComputeService(a.db, a.cfg, a.logger)
	if err := svc.RegisterDefinitions(); err != nil {
		return err
	}
	res, err := svc.ComputeAll(ctx, keys, force)
	if err != nil {
		return err
	}
	fmt.Printf("%d rides: %d computed, %d cached, %d failed\n", res.Activities, res.Computed, res.Cached, res.Failed)
	return nil
}

func (a *app) listMetrics(args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print definitions as JSON")
	fs.Parse(args)

	defs := metrics.Definitions()
	if *asJSON {
		return printJSON(defs)
	}
	for _, d := range defs {
		fmt.Printf("%-26s v%d  %s\n", d.Key, d.Version, d.Name)
		fmt.Printf("%-26s      %s\n", "", d.Description)
	}
	return nil
}

// rangeFlags registers -from and -to on fs
func rangeFlags(fs *flag.FlagSet) func() (service.Range, error) {
	from := fs.String("from", "", "first day to include (YYYY-MM-DD, UTC)")
	to := fs.String("to", "", "last day to include (YYYY-MM-DD, UTC)")
	return func() (service.Range, error) {
		var r service.Range
		if *from != "" {
			t, err := time.Parse(dateLayout, *from)
			if err != nil {
				return r, fmt.Errorf("bad -from: %w", err)
			}
			r.From = t
		}
		if *to != "" {
			t, err := time.Parse(dateLayout, *to)
			if err != nil {
				return r, fmt.Errorf("bad -to: %w", err)
			}
			r.To = t.AddDate(0, 0, 1)
		}
		return r, nil
	}
}

func (a *app) edges(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edges", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	parseRange := rangeFlags(fs)
	fs.Parse(args)

	r, err := parseRange()
	if err != nil {
		return err
	}
	res, err := service.NewAnalysisService(a.db, a.cfg, a.logger).AdaptationEdges(ctx, r)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(res)
	}

	fmt.Printf("FTP %s W (%s)", humanize.Ftoa(res.FTPUsed), res.FTPSource)
	if w := a.cfg.Athlete.WeightKG; w > 0 && res.FTPUsed > 0 {
		fmt.Printf(", %.2f W/kg", res.FTPUsed/w)
	}
	fmt.Println()

	var kj float64
	for _, l := range res.Loads {
		kj += l.KJ
	}
	fmt.Printf("%d rides over %d days, %s kJ, %d skipped\n\n", len(res.Loads), len(res.Timeline), humanize.Commaf(round1(kj)), len(res.Skipped))

	if n := len(res.Fitness); n > 0 {
		f := res.Fitness[n-1]
		fmt.Printf("Fitness %.1f  Fatigue %.1f  Form %.1f (%s)\n\n", f.CTL, f.ATL, f.TSB, aggregate.FormDescription(f.TSB))
	}

	fmt.Println("Days  Best TSS block                    Best kJ block")
	for _, w := range res.Windows {
		fmt.Printf("%4d  %-32s  %s\n", w.Days, describeBlock(w.BestTSS, ""), describeBlock(w.BestKJ, " kJ"))
	}
	return nil
}

func (a *app) depth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("depth", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	parseRange := rangeFlags(fs)
	fs.Parse(args)

	r, err := parseRange()
	if err != nil {
		return err
	}
	res, err := service.NewAnalysisService(a.db, a.cfg, a.logger).DepthAnalysis(ctx, r)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(res)
	}

	crossed := 0
	for _, d := range res.Activities {
		if d.Crossed {
			crossed++
		}
	}
	fmt.Printf("Threshold %s kJ above %s W: crossed in %d of %d rides\n",
		humanize.Commaf(res.ThresholdKJ), humanize.Ftoa(res.MinPowerW), crossed, len(res.Activities))
	if n := len(res.Timeline); n > 0 {
		fmt.Printf("Moving average depth: %s kJ/day\n", humanize.Commaf(res.Timeline[n-1].MovingAverage))
	}
	fmt.Println()
	for i := range res.BestBlocks {
		b := &res.BestBlocks[i]
		fmt.Printf("%4d  %s\n", b.DayCount, describeBlock(b, " kJ"))
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	kind := fs.String("kind", "samples", "what to export: samples, edges or depth")
	activity := fs.String("activity", "", "activity to export samples of")
	out := fs.String("out", "", "output Parquet file")
	parseRange := rangeFlags(fs)
	fs.Parse(args)

	if *out == "" {
		return errors.New("export: -out is required")
	}

	switch *kind {
	case "samples":
		if *activity == "" {
			return errors.New("export: -activity is required for samples")
		}
		act, err := a.db.GetActivity(*activity)
		if err != nil {
			return err
		}
		in, err := a.db.GetSamples(act.ID)
		if err != nil {
			return err
		}
		if err := export.WriteSamplesFile(*out, act.Engine(), in); err != nil {
			return err
		}
		fmt.Printf("Wrote %s samples to %s\n", humanize.Comma(int64(len(in))), *out)
		return nil

	case "edges", "depth":
		r, err := parseRange()
		if err != nil {
			return err
		}
		svc := service.NewAnalysisService(a.db, a.cfg, a.logger)
		var days int
		if *kind == "edges" {
			res, err := svc.AdaptationEdges(ctx, r)
			if err != nil {
				return err
			}
			if err := export.WriteTimelineFile(*out, res.Timeline); err != nil {
				return err
			}
			days = len(res.Timeline)
		} else {
			res, err := svc.DepthAnalysis(ctx, r)
			if err != nil {
				return err
			}
			if err := export.WriteDepthTimelineFile(*out, res.Timeline); err != nil {
				return err
			}
			days = len(res.Timeline)
		}
		fmt.Printf("Wrote %d days to %s\n", days, *out)
		return nil

	default:
		return fmt.Errorf("export: unknown kind %q", *kind)
	}
}

func (a *app) status(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	total, err := a.db.CountActivities()
	if err != nil {
		return err
	}
	synced, err := a.db.ListActivitiesWithSamples()
	if err != nil {
		return err
	}
	fmt.Printf("Rides: %s (%s with samples)\n", humanize.Comma(int64(total)), humanize.Comma(int64(len(synced))))

	last, err := a.db.GetSyncTime(store.SyncKeyLastRun)
	if err != nil {
		return err
	}
	if last.IsZero() {
		fmt.Println("Last Strava sync: never")
	} else {
		fmt.Printf("Last Strava sync: %s\n", humanize.Time(last))
	}

	for _, d := range metrics.Definitions() {
		n, err := a.db.CountResults(d.Key, d.Version)
		if err != nil {
			return err
		}
		fmt.Printf("  %-26s %s cached\n", d.Key, humanize.Comma(int64(n)))
	}
	return nil
}

func describeBlock(b *aggregate.BlockSummary, unit string) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%s..%s %s%s", b.Start.Format("Jan 2"), b.End.Format("Jan 2"), humanize.Commaf(b.Total), unit)
}

func formatDuration(sec float64) string {
	return (time.Duration(sec) * time.Second).String()
}

func round1(v float64) float64 {
	if r := metrics.Round(v, 1); r != nil {
		return *r
	}
	return 0
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
