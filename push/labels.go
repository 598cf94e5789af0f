package push

import (
	"fmt"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/model"
)

// validateGroupingKey checks every grouping-key label name at construction
// time. "job" is owned by the job path segment and "__"-prefixed names are
// reserved for internal Prometheus use; everything else must be a
// syntactically valid label name.
func validateGroupingKey(groupingKey map[string]string) error {
	for name := range groupingKey {
		switch {
		case name == model.JobLabel:
			return fmt.Errorf("%w: grouping key may not contain the %q label", ErrInvalidLabelSet, model.JobLabel)
		case strings.HasPrefix(name, model.ReservedLabelPrefix):
			return fmt.Errorf("%w: label %q uses the reserved %q prefix", ErrInvalidLabelSet, name, model.ReservedLabelPrefix)
		case !model.LabelName(name).IsValid():
			return fmt.Errorf("%w: %q is not a valid label name", ErrInvalidLabelSet, name)
		}
	}
	return nil
}

// checkCollisions fails if any metric in mfs uses a label that is also a
// grouping-key label. The gateway would silently overwrite that metric's
// label value with the grouping-key value, so the push is refused before any
// bytes go out.
func (c *Client) checkCollisions(mfs []*dto.MetricFamily) error {
	if len(c.groupingKey) == 0 {
		return nil
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if _, ok := c.groupingKey[lp.GetName()]; ok {
					return fmt.Errorf("%w: grouping key label %q is used by metric %q",
						ErrLabelCollision, lp.GetName(), mf.GetName())
				}
			}
		}
	}
	return nil
}
