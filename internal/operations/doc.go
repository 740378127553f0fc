// Package operations provides a flexible and extensible execution framework
// for orchestrating the multi-stage COVID-19 analysis pipeline.
//
// A pipeline run moves the OWID dataset through five stages: fetch downloads
// the raw CSV, process cleans it, analyze computes statistics, visualize
// renders the chart catalogue, and report bundles insights with the run
// manifest. The package supports:
//
//   - Stage-based execution with dependency management
//   - Configurable retry logic and error handling
//   - Real-time progress tracking via WebSocket
//   - Per-stage timeouts and cancellation
//   - A pipeline manifest recording which artifacts exist on disk
//
// Core Components:
//
// Manager: The main orchestrator that manages operation execution, stage
// registration, and state management. It coordinates the execution of stages
// based on their dependencies and configured execution mode.
//
// Stage: An interface that defines a single unit of work in the pipeline.
// Stages can have dependencies on other stages and are executed in the
// correct order.
//
// Registry: Manages the registration and retrieval of stages. It validates
// dependencies and provides topological sorting for execution order.
//
// OperationState: Tracks the runtime state of both the operation and
// individual stages, including progress, errors, and metadata.
//
// StatusBroadcaster: The single authority for operation status. Every state
// change produces a complete snapshot broadcast over WebSocket.
//
// Config: Provides configuration options for operation execution, including
// timeouts, retry policies, and execution modes.
//
// Example usage:
//
//	// Create a new operation manager
//	manager := operations.NewManager(wsHub, nil, nil)
//
//	// Register stages
//	manager.RegisterStage(NewFetchStage(deps))
//	manager.RegisterStage(NewProcessStage(deps))
//	manager.RegisterStage(NewAnalyzeStage(deps))
//	manager.RegisterStage(NewVisualizeStage(deps))
//	manager.RegisterStage(NewReportStage(deps))
//
//	// Configure operation
//	config := operations.NewConfigBuilder().
//		WithExecutionMode(operations.ExecutionModeSequential).
//		WithRetryConfig(operations.NewRetryConfig()).
//		Build()
//	manager.SetConfig(config)
//
//	// Execute operation
//	req := operations.OperationRequest{
//		Mode:     operations.ModeFull,
//		FromDate: "2020-03-01",
//		ToDate:   "2021-12-31",
//	}
//	resp, err := manager.Execute(ctx, req)
//
// The package integrates with the websocket hub to provide real-time updates
// on operation progress and stage status changes.
package operations
