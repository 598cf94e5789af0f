package push

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/common/expfmt"
)

func TestTextSerializerRoundTrip(t *testing.T) {
	reg := newTestRegistry(t, "jobs_completed_total", map[string]string{"queue": "default"})
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	s := NewTextSerializer()
	if ct := s.ContentType(); !strings.Contains(ct, "text/plain") {
		t.Errorf("ContentType() = %q, want text exposition format", ct)
	}

	payload, err := s.Marshal(mfs)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var parser expfmt.TextParser
	parsed, err := parser.TextToMetricFamilies(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("parse serialized payload: %v", err)
	}
	mf, ok := parsed["jobs_completed_total"]
	if !ok {
		t.Fatalf("family missing from payload %q", payload)
	}
	if len(mf.GetMetric()) != 1 {
		t.Errorf("got %d metrics, want 1", len(mf.GetMetric()))
	}
}

func TestMergeSources(t *testing.T) {
	a := newTestRegistry(t, "alpha_total", map[string]string{"shard": "0"})
	b := newTestRegistry(t, "beta_total", nil)
	c := newTestRegistry(t, "alpha_total", map[string]string{"shard": "1"})

	mfs, err := MergeSources(a, b, c).Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	if len(mfs) != 2 {
		t.Fatalf("got %d families, want 2", len(mfs))
	}
	// Sorted by name: alpha_total first, with metrics from both registries.
	if mfs[0].GetName() != "alpha_total" || mfs[1].GetName() != "beta_total" {
		t.Errorf("family order = %q, %q", mfs[0].GetName(), mfs[1].GetName())
	}
	if len(mfs[0].GetMetric()) != 2 {
		t.Errorf("alpha_total has %d metrics, want 2 (merged)", len(mfs[0].GetMetric()))
	}
}

func TestMergeSourcesTypeConflict(t *testing.T) {
	counter := newTestRegistry(t, "value", nil)
	gauge := newTestGaugeRegistry(t, "value")

	if _, err := MergeSources(counter, gauge).Gather(); err == nil {
		t.Fatal("expected type-conflict error, got nil")
	}
}
