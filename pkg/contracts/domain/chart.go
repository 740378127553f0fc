package domain

import (
	"time"
)

// ChartKind classifies a generated chart.
type ChartKind string

const (
	ChartKindLine       ChartKind = "line"
	ChartKindBar        ChartKind = "bar"
	ChartKindPie        ChartKind = "pie"
	ChartKindHeatmap    ChartKind = "heatmap"
	ChartKindChoropleth ChartKind = "choropleth"
	ChartKindScatter    ChartKind = "scatter"
	ChartKindTimeline   ChartKind = "timeline"
	ChartKindPage       ChartKind = "page"
)

// ChartArtifact describes one generated chart file pair. The HTML file
// always exists; the PNG snapshot only when static export ran.
type ChartArtifact struct {
	Name        string    `json:"name" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Kind        ChartKind `json:"kind" validate:"required"`
	HTMLPath    string    `json:"html_path"`
	PNGPath     string    `json:"png_path,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ChartIndex is the machine-readable list of generated charts, written
// next to the chart files and served by the dashboard.
type ChartIndex struct {
	GeneratedAt time.Time       `json:"generated_at"`
	DatasetDate time.Time       `json:"dataset_date"`
	Charts      []ChartArtifact `json:"charts"`
}
