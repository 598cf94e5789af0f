package push

import (
	"bytes"
	"fmt"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// MetricsSource supplies the metric families for one push. It is the
// read-only slice of prometheus.Gatherer this package needs, so a
// *prometheus.Registry satisfies it directly.
type MetricsSource interface {
	Gather() ([]*dto.MetricFamily, error)
}

// Serializer converts gathered metric families into a request body and names
// the content type the gateway should parse it as.
type Serializer interface {
	ContentType() string
	Marshal(mfs []*dto.MetricFamily) ([]byte, error)
}

// textSerializer writes the Prometheus text exposition format.
type textSerializer struct {
	format expfmt.Format
}

// NewTextSerializer returns the default Serializer, producing the text
// exposition format with its standard content type.
func NewTextSerializer() Serializer {
	return textSerializer{format: expfmt.NewFormat(expfmt.TypeTextPlain)}
}

func (s textSerializer) ContentType() string { return string(s.format) }

func (s textSerializer) Marshal(mfs []*dto.MetricFamily) ([]byte, error) {
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, s.format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("encode family %q: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// MergeSources combines several sources into one. Families with the same name
// are merged by concatenating their metrics; a type conflict between sources
// is an error. The merged result is sorted by family name so the serialized
// payload is deterministic.
func MergeSources(sources ...MetricsSource) MetricsSource {
	return mergedSource(sources)
}

type mergedSource []MetricsSource

func (ms mergedSource) Gather() ([]*dto.MetricFamily, error) {
	byName := make(map[string]*dto.MetricFamily)
	for _, src := range ms {
		mfs, err := src.Gather()
		if err != nil {
			return nil, err
		}
		for _, mf := range mfs {
			existing, ok := byName[mf.GetName()]
			if !ok {
				// Shallow-copy the family so later merges never append into a
				// snapshot still owned by its source.
				byName[mf.GetName()] = &dto.MetricFamily{
					Name:   mf.Name,
					Help:   mf.Help,
					Type:   mf.Type,
					Metric: append([]*dto.Metric(nil), mf.GetMetric()...),
				}
				continue
			}
			if existing.GetType() != mf.GetType() {
				return nil, fmt.Errorf("merge sources: family %q has conflicting types %s and %s",
					mf.GetName(), existing.GetType(), mf.GetType())
			}
			existing.Metric = append(existing.Metric, mf.GetMetric()...)
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*dto.MetricFamily, 0, len(names))
	for _, name := range names {
		out = append(out, byName[name])
	}
	return out, nil
}
