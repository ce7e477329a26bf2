package main

import (
	"fmt"
	"github.com/osmtransit/gtfs2osm"
	"github.com/spf13/pflag"
	"log/slog"
	"os"
	"strconv"
)

func usageAndDie() {
	fmt.Println("Example usage:\n" +
		"    gtfs2osm --gtfs <feed.zip|feed.db> --osm <overpass.json> --output <correlations.csv> --radius 100\n" +
		"    gtfs2osm --gtfs <feed.zip> --osm <overpass.json> --output <correlations.csv> --radius 100 \\\n" +
		"        --filter-correlated --bounds <feature_geojson.json>")
	os.Exit(1)
}

func main() {
	gtfsPath := pflag.StringP("gtfs", "g", os.Getenv("GTFS_FILE"), "Path to the GTFS feed (zip or sqlite db)")
	osmPath := pflag.StringP("osm", "m", os.Getenv("OSM_FILE"), "Path to the Overpass JSON extract")
	outputPath := pflag.StringP("output", "o", os.Getenv("OUTPUT_FILE"), "Path to the correlation file")
	radius := pflag.Float64P("radius", "r", 0, "Candidate search radius in meters")
	maxResults := pflag.IntP("max-results", "n", 5, "Maximum number of candidates to present per stop")
	filterCorrelated := pflag.BoolP("filter-correlated", "f", envBool("FILTER_ALREADY_CORRELATED_DATA"),
		"Exclude already-correlated stops from review")
	boundsPath := pflag.String("bounds", "", "Restrict review to stops inside the GeoJSON feature in the file specified")
	verbose := pflag.BoolP("verbose", "v", false, "Log skipped elements and per-stop detail")

	pflag.Parse()

	if *gtfsPath == "" || *osmPath == "" || *outputPath == "" || *radius <= 0 {
		usageAndDie()
	}
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	stops, err := gtfs2osm.LoadGTFSStops(*gtfsPath)
	if err != nil {
		die(err)
	}
	mapStops, err := gtfs2osm.LoadOSMStops(*osmPath)
	if err != nil {
		die(err)
	}

	if *boundsPath != "" {
		featureJSON, err := os.ReadFile(*boundsPath)
		if err != nil {
			die(err)
		}
		feature, err := gtfs2osm.ParseBoundsFeature(string(featureJSON))
		if err != nil {
			die(err)
		}
		stops = gtfs2osm.FilterWithinFeature(feature, stops)
		mapStops = gtfs2osm.FilterWithinFeature(feature, mapStops)
	}

	store, err := gtfs2osm.LoadCorrelationStore(*outputPath)
	if err != nil {
		die(err)
	}

	reviewer := gtfs2osm.NewPromptReviewer(os.Stdin, os.Stdout)
	report, err := gtfs2osm.RunReview(stops, mapStops, store, reviewer, gtfs2osm.ReviewOpts{
		RadiusMeters:     *radius,
		MaxResults:       *maxResults,
		FilterCorrelated: *filterCorrelated,
	})
	if err != nil {
		die(err)
	}

	fmt.Printf("\nConfirmed %d, skipped %d, deferred %d. %s now holds %d correlations.\n",
		report.Confirmed, report.Skipped, report.Deferred, *outputPath, store.Len())
	fmt.Println("All done")
}

func die(err error) {
	fmt.Printf("Error: %s\n", err)
	os.Exit(1)
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}
