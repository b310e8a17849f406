package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEventCountsByClassification(t *testing.T) {
	before := testutil.ToFloat64(eventsTotal.WithLabelValues("content"))
	ObserveEvent("content", 3*time.Millisecond, 4)
	ObserveEvent("content", time.Millisecond, 0)
	assert.Equal(t, before+2, testutil.ToFloat64(eventsTotal.WithLabelValues("content")))
}

func TestParseFailureDefaultsLanguage(t *testing.T) {
	before := testutil.ToFloat64(parseFailures.WithLabelValues("unknown"))
	ParseFailure("")
	assert.Equal(t, before+1, testutil.ToFloat64(parseFailures.WithLabelValues("unknown")))
}

func TestHandlerExposesRippleMetrics(t *testing.T) {
	SetTrackedFiles(7)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "ripple_tracked_files 7"), body)
}
