// Package exporter writes the pipeline's processed and analytics
// artifacts to disk.
//
// This package contains four main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// JSONWriter: Indented JSON artifact writing with stable formatting for
// the profile, correlation, and chart index files.
//
// CleanExporter and AnalysisExporter: Convert domain results (clean
// dataset, snapshot, global trends, rankings, correlations, insights)
// into their CSV, JSON, and text artifact files. LoadSnapshot and
// LoadGlobalTrends read the CSV artifacts back for serving.
//
// WorkbookWriter: Builds the analytics XLSX workbook with Snapshot,
// Rankings, and Global Trends sheets.
//
// Example usage:
//
//	// Export the latest snapshot
//	exp := exporter.NewAnalysisExporter(paths)
//	err := exp.ExportSnapshot(snapshot)
//
//	// Build the analytics workbook
//	wb := exporter.NewWorkbookWriter(paths)
//	err = wb.Write(snapshot, trends, rankings)
package exporter
