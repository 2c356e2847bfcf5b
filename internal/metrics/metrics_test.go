package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(EditRequests.WithLabelValues("EDIT_MODE"))
	EditRequests.WithLabelValues("EDIT_MODE").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(EditRequests.WithLabelValues("EDIT_MODE")))

	LinkOperations.WithLabelValues("create", "save").Add(2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(LinkOperations.WithLabelValues("create", "save")), 2.0)
}
