// Package sink hands the collected channel records to their destination.
package sink

import (
	"context"
	"errors"

	"github.com/Sternrassler/helix-channel-crawler/internal/extract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sinkRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_sink_records_total",
		Help: "Total records written by sink",
	}, []string{"sink"})

	sinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helix_sink_errors_total",
		Help: "Total sink write errors by sink",
	}, []string{"sink"})
)

// Sink receives the records of one run.
type Sink interface {
	Write(ctx context.Context, records []extract.ChannelRecord) error
}

type multi []Sink

// Multi writes to every sink in order and joins their errors. A failing sink
// does not prevent the following ones from being written.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Write(ctx context.Context, records []extract.ChannelRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
