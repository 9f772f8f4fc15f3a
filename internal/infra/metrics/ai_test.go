package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncFallback_Kinds(t *testing.T) {
	for _, kind := range []string{"overload", "generic", "busy"} {
		before := testutil.ToFloat64(aiFallbacks.WithLabelValues("fake", kind))
		IncFallback("Fake", kind)
		got := testutil.ToFloat64(aiFallbacks.WithLabelValues("fake", kind))
		if got-before != 1 {
			t.Errorf("fallback counter for kind %q did not increment", kind)
		}
	}
}
