// Package metrics contains the prometheus collectors of the cutover tool.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Namespace is the prometheus metric namespace.
const Namespace = "gateway_cutover"

// Register registers the collectors with the given registerer.
func Register(registerer prometheus.Registerer, collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// WriteText gathers all metrics and writes them to w in the prometheus text
// exposition format. The tool is a one-shot process, so the metrics of a run
// are written out at the end of the run instead of being scraped.
func WriteText(gatherer prometheus.Gatherer, w io.Writer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}

	return nil
}
