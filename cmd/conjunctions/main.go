// Command conjunctions runs the end-to-end close-approach search over a
// satellite catalog and writes the resulting report as JSON.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"

	"github.com/csenn/space-trace-collisions/catalog"
	"github.com/csenn/space-trace-collisions/collisions"
	"github.com/csenn/space-trace-collisions/config"
	"github.com/csenn/space-trace-collisions/jd"
)

const defaultPath = "~~unset~~"

var (
	catalogPath string
	configPath  string
	outputPath  string
	verbose     bool
)

func init() {
	flag.StringVar(&catalogPath, "catalog", defaultPath, "JSON catalog file of TLE objects")
	flag.StringVar(&configPath, "config", defaultPath, "TOML run configuration (defaults used if unset)")
	flag.StringVar(&outputPath, "out", "report.json", "path to write the conjunction report")
	flag.BoolVar(&verbose, "verbose", false, "log every pipeline stage")
}

func main() {
	flag.Parse()
	if catalogPath == defaultPath {
		log.Fatal("no catalog provided")
	}

	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	logger = kitlog.With(logger, "cmd", "conjunctions")
	if !verbose {
		logger = kitlog.NewNopLogger()
	}

	objects, err := catalog.LoadFile(catalogPath)
	if err != nil {
		log.Fatalf("loading catalog %s: %s", catalogPath, err)
	}

	var cfg config.Config
	if configPath == defaultPath {
		cfg = config.Default(jd.FromDateTime(time.Now().UTC()))
	} else {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			log.Fatalf("loading config %s: %s", configPath, err)
		}
	}

	report, stats, err := collisions.Run(context.Background(), objects, cfg, logger)
	if err != nil {
		log.Fatalf("pipeline: %s", err)
	}
	log.Printf("conjunctions: %d objects dropped, %d nan slots, %d candidate pairs, %d refined, %d reported",
		stats.DroppedObjects, stats.NaNSlots, stats.CandidatePairs, stats.RefinedPairs, len(report))

	out, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("creating %s: %s", outputPath, err)
	}
	defer out.Close()

	if err := collisions.WriteReportJSON(out, report); err != nil {
		log.Fatalf("writing report: %s", err)
	}
}
