// Package dataset handles the raw data lifecycle: downloading the
// source CSV, parsing it into domain records and cleaning the records
// into the country view the analytics run on.
//
// # Architecture
//
// The package is organized into three main components:
//
// 1. Fetcher: Downloads the dataset and maintains the fetch manifest
// 2. Parser: Streams the CSV into domain records, preserving NULLs
// 3. Cleaner: Applies fills and computes derived rates
//
// # Usage
//
// Basic fetch and parse:
//
//	fetcher := dataset.NewFetcher(cfg.Dataset, paths, logger, metrics)
//	result, err := fetcher.Fetch(ctx)
//	if err != nil {
//	    return err
//	}
//
//	parser := dataset.NewParser(cfg.Dataset, logger)
//	ds, err := parser.ParseFile(ctx, result.Path)
//
// Cleaning:
//
//	cleaner := dataset.NewCleaner()
//	clean := cleaner.Clean(ds)
//	// clean.Countries carries the filled country view,
//	// clean.Aggregates the untouched World/continent rows.
//
// # Data Flow
//
// The typical data flow through this package:
//
//	Upstream CSV → Fetcher → raw file → Parser → Records → Cleaner → Country view
//
// # Missing Values
//
// The parser never invents values: an empty numeric cell stays NULL
// (NullFloat with Valid=false). Only the cleaner decides fills, so the
// dataset profile can still report what was actually missing upstream.
package dataset
