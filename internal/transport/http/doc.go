// Package http holds the dashboard's HTTP handlers. Each handler owns one
// slice of the API surface and delegates real work to the service layer:
//
//   - OperationsHandler starts, lists, and cancels pipeline runs
//   - DataHandler serves processed artifacts (snapshot, rankings, series)
//   - HTMLHandler serves the dashboard pages and rendered chart files
//   - HealthHandler reports liveness, readiness, and data freshness
//   - ClientLogHandler accepts log batches posted by the dashboard frontend
//
// Handlers parse the request, call a service, and encode the result with
// go-chi/render. They never touch the filesystem or the dataset directly;
// the service interfaces in data_service_interface.go and
// operations_service_interface.go are the seam the tests mock.
//
// Failures render as RFC 7807 problem documents:
//
//	{
//	    "type": "/errors/validation",
//	    "title": "Validation Error",
//	    "status": 400,
//	    "detail": "unknown metric \"new_cases_smooth\"",
//	    "instance": "/api/rankings"
//	}
//
// Handler code builds *errors.APIError values and hands them to the shared
// ErrorHandler, which picks the problem type from the error code. Anything
// the handler did not classify surfaces as a 500 internal problem.
//
// Tests drive handlers through httptest with mocked services and assert on
// status codes and problem types rather than exact detail strings.
package http
