// Package config provides centralized configuration management for the
// covidcli system. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration
// values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration files (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern COVID_* for namespacing:
//
//	COVID_SERVER_PORT=8080
//	COVID_DATASET_URL=https://raw.githubusercontent.com/owid/covid-19-data/master/public/data/owid-covid-data.csv
//	COVID_LOGGING_LEVEL=info
//	COVID_CHARTS_RENDER_PNG=true
//	COVID_SCHEDULER_CRON_SPEC="0 6 * * *"
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	rawPath := paths.GetRawPath("owid-covid-data.csv")
//	chartPath := paths.GetChartHTMLPath("global_new_cases")
//
// Tests and the -output CLI flag use PathsAt to root the same layout
// somewhere else.
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Required fields are present
//	- Values are within acceptable ranges
//	- Directories exist or can be created
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
