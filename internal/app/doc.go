// Package app wires the COVID-19 dashboard together and owns its
// lifecycle: configuration, logging and OTel providers, the data
// directory layout, services, the chi router, the WebSocket hub and
// the refresh scheduler.
//
// Startup order matters. Config and logging come first so every later
// failure is reported properly, then observability, then the service
// layer, and the HTTP server last so no request arrives before its
// dependencies exist.
//
// The usual entry point:
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT or SIGTERM, then shuts down in reverse of
// startup: in-flight requests drain, the scheduler stops firing, an
// active pipeline run is cancelled, WebSocket clients are closed and
// the metric exporters flush. Initialization errors are returned to
// the caller rather than exiting, so main controls the process exit.
package app
