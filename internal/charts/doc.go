// Package charts renders the interactive chart catalogue from analysis
// results.
//
// A Generator builds every chart with go-echarts: global trend lines,
// top-N bars, selected-country comparisons, a continent share pie, the
// monthly heatmap, world choropleths, the two relationship scatters,
// the animated top-cases race, and the combined dashboard page. Charts
// render to self-contained HTML files; when PNG export is enabled a
// Snapshotter captures each file through headless Chrome.
//
// Chart HTML rendering and snapshotting run under a bounded errgroup so
// a large catalogue cannot starve the host.
package charts
