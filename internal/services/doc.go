// Package services implements the business logic layer of the COVID-19
// analytics application. It sits between the HTTP handlers and the pipeline
// artifacts on disk, ensuring that query rules are centralized and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Artifact caching with explicit invalidation
//	5. Domain-focused methods that encapsulate query rules
//
// # Service Layer Responsibilities
//
// The service layer is responsible for:
//
//	- Query validation (metrics, locations, limits)
//	- Reading and caching pipeline artifacts
//	- Cross-cutting concerns (logging, metrics)
//	- Error handling and transformation
//	- Single-flight pipeline execution
//
// # Available Services
//
// The package provides these core services:
//
//	- DataService: serves parsed pipeline artifacts (snapshot, trends,
//	  rankings, correlations, insights, chart index) with a TTL cache
//	- OperationService: owns pipeline runs, one active run at a time
//	- HealthService: liveness, readiness and dependency checks
//
// # Error Handling
//
// Services return domain-specific errors that handlers can transform:
//
//	- ErrArtifactNotFound when the pipeline has not produced a file yet
//	- ErrUnknownMetric and ErrLocationNotFound for invalid queries
//	- operations.ErrOperationInProgress when a second run is requested
//	- operations.ErrOperationNotFound for unknown run IDs
//
// # Testing
//
// Services are tested against real artifacts written into a temp
// directory, and against mock pipeline stages:
//
//	paths := config.PathsAt(t.TempDir())
//	exporter.NewAnalysisExporter(paths).ExportSnapshot(rows)
//	svc := NewDataService(cfg, paths, logger)
//	got, err := svc.Snapshot(ctx, SnapshotQuery{Continent: "Asia"})
package services
