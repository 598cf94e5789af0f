package push

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateGroupingKey(t *testing.T) {
	tests := []struct {
		name    string
		key     map[string]string
		wantErr bool
	}{
		{name: "nil key", key: nil, wantErr: false},
		{name: "valid labels", key: map[string]string{"instance": "a", "shard_id": "7"}, wantErr: false},
		{name: "job is reserved", key: map[string]string{"job": "other"}, wantErr: true},
		{name: "reserved prefix", key: map[string]string{"__name__": "x"}, wantErr: true},
		{name: "leading digit", key: map[string]string{"0bad": "x"}, wantErr: true},
		{name: "illegal character", key: map[string]string{"has-dash": "x"}, wantErr: true},
		{name: "empty name", key: map[string]string{"": "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGroupingKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLabelSet) {
					t.Errorf("got %v, want ErrInvalidLabelSet", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckCollisionsNamesLabelAndMetric(t *testing.T) {
	c, err := New("batch", WithGrouping("instance", "backup-1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reg := newTestRegistry(t, "requests_total", map[string]string{"instance": "local"})
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	err = c.checkCollisions(mfs)
	if !errors.Is(err, ErrLabelCollision) {
		t.Fatalf("got %v, want ErrLabelCollision", err)
	}
	for _, want := range []string{"instance", "requests_total"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %q", err, want)
		}
	}
}

func TestCheckCollisionsEmptyGroupingKeyIsNoop(t *testing.T) {
	c, err := New("batch")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reg := newTestRegistry(t, "requests_total", map[string]string{"instance": "local"})
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if err := c.checkCollisions(mfs); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
