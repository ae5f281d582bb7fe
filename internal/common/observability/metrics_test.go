package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	assert.NotPanics(t, func() {
		done := o.RunStarted(context.Background())
		done("hybrid", "ready")
		o.RecordRun(context.Background(), time.Second, "legacy", "failed")
		o.Shutdown()
	})
}

func TestZeroObservabilityIsSafe(t *testing.T) {
	o := &Observability{}
	assert.NotPanics(t, func() {
		o.RunStarted(context.Background())("legacy", "failed")
	})
}
