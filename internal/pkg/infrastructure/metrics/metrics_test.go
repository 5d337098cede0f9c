package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestCollectorExposesRecordedMetrics(t *testing.T) {
	is := is.New(t)

	c, err := NewWriteCollector()
	is.NoErr(err)

	c.RecordSubmission("committed")
	c.RecordCommit(120 * time.Millisecond)
	c.RecordConflict("rebased")
	c.RecordRateLimitWait(time.Second)
	c.RecordAmbiguousOutcome()

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler().ServeHTTP(recorder, req)

	body := recorder.Body.String()
	is.True(strings.Contains(body, `wikibase_write_submissions_total{outcome="committed"} 1`))
	is.True(strings.Contains(body, `wikibase_write_conflicts_total{resolution="rebased"} 1`))
	is.True(strings.Contains(body, `wikibase_write_ambiguous_outcomes_total 1`))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *WriteCollector

	c.RecordSubmission("committed")
	c.RecordCommit(time.Second)
	c.RecordConflict("rebased")
	c.RecordRateLimitWait(time.Second)
	c.RecordAmbiguousOutcome()
}
