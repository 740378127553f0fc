// Package api contains API contract definitions for the COVID-19 data
// analysis dashboard. Version v1 represents the current stable API version.
package api

import (
	"covidcli/pkg/contracts/domain"
)

// Common request parameters

// DateRangeRequest represents a date range in requests
type DateRangeRequest struct {
	From string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Operation API Requests

// OperationStartRequest represents a request to run the data pipeline.
// Stages defaults to the full fetch-to-report chain when empty.
type OperationStartRequest struct {
	Stages      []string `json:"stages,omitempty" validate:"omitempty,dive,oneof=fetch process analyze visualize report"`
	ForceFetch  bool     `json:"force_fetch,omitempty"`
	RenderPNG   bool     `json:"render_png,omitempty"`
	Trigger     string   `json:"trigger,omitempty" validate:"omitempty,oneof=manual scheduled startup"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=200"`
}

// OperationListRequest represents a request to list pipeline runs
type OperationListRequest struct {
	Status string `json:"status" query:"status" validate:"omitempty,oneof=pending running completed failed cancelled"`
	Limit  int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=100"`
}

// Data API Requests

// SnapshotRequest represents a request for the latest per-location data
type SnapshotRequest struct {
	Continent string `json:"continent" query:"continent" validate:"omitempty,oneof=Africa Asia Europe 'North America' Oceania 'South America'"`
	Sort      string `json:"sort" query:"sort"`
	Limit     int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=500"`
}

// TrendsRequest represents a request for the global time series
type TrendsRequest struct {
	Metric string `json:"metric" query:"metric"`
	DateRangeRequest
}

// LocationSeriesRequest represents a request for per-location series
type LocationSeriesRequest struct {
	Locations []string `json:"locations" query:"locations" validate:"required,min=1,max=12"`
	Metric    string   `json:"metric" query:"metric"`
	DateRangeRequest
}

// RankingsRequest represents a request for a top-N ranking
type RankingsRequest struct {
	Metric string `json:"metric" query:"metric" validate:"required"`
	Limit  int    `json:"limit" query:"limit" validate:"omitempty,min=1,max=50"`
}

// Responses

// ErrorResponse is the RFC 7807 error body shape
type ErrorResponse struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// SnapshotResponse wraps the latest per-location rows
type SnapshotResponse struct {
	Date      string                    `json:"date"`
	Count     int                       `json:"count"`
	Locations []domain.LocationSnapshot `json:"locations"`
}

// TrendsResponse wraps the global series
type TrendsResponse struct {
	Metric string                    `json:"metric"`
	Points []domain.GlobalTrendPoint `json:"points"`
}

// RankingsResponse wraps one ranking
type RankingsResponse struct {
	Metric  string                `json:"metric"`
	Entries []domain.RankingEntry `json:"entries"`
}

// OperationResponse wraps a pipeline run summary
type OperationResponse struct {
	Operation domain.OperationSummary `json:"operation"`
}
