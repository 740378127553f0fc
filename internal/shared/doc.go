// Package shared holds the small amount of code that belongs to no single
// layer of the pipeline.
//
// Today that is only the testutil subpackage: dataset fixtures for building
// synthetic OWID rows and a buffered slog handler for asserting on log
// output. Production packages must not import anything under shared; it
// exists for tests.
//
// Code with domain meaning (dataset types, analytics, exporters) does not
// belong here, and neither do third-party wrappers. If a helper needs an
// import beyond the standard library it should live next to its only
// caller instead.
package shared
