// Package analytics computes the analytical artifacts from cleaned
// dataset records: the worldwide trend series, the latest per-location
// snapshot, metric rankings, the correlation snapshot, the dataset
// profile and the insight summary.
//
// Every operation is a pure function over domain inputs. Nothing here
// touches the filesystem or network; the exporter persists the results
// and the charts package renders them.
package analytics
