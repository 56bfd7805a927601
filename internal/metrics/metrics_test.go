package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRun(t *testing.T) {
	okBefore := testutil.ToFloat64(AnalysisRunsTotal.WithLabelValues(ResultOK))
	framesBefore := testutil.ToFloat64(FramesTotal)
	malformedBefore := testutil.ToFloat64(MalformedFramesTotal)
	issueBefore := testutil.ToFloat64(IssuesTotal.WithLabelValues("Suspicious Ports", "warn"))

	ObserveRun(Run{
		Result:        ResultOK,
		Frames:        12,
		Malformed:     2,
		Flows:         4,
		Conversations: 3,
		Issues:        []IssueLabel{{Rule: "Suspicious Ports", Severity: "warn"}},
		Elapsed:       15 * time.Millisecond,
	})

	assert.Equal(t, okBefore+1, testutil.ToFloat64(AnalysisRunsTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, framesBefore+12, testutil.ToFloat64(FramesTotal))
	assert.Equal(t, malformedBefore+2, testutil.ToFloat64(MalformedFramesTotal))
	assert.Equal(t, issueBefore+1, testutil.ToFloat64(IssuesTotal.WithLabelValues("Suspicious Ports", "warn")))
	assert.Equal(t, 4.0, testutil.ToFloat64(LastRunFlows))
	assert.Equal(t, 3.0, testutil.ToFloat64(LastRunConversations))
}

func TestObserveRunFailureKeepsGauges(t *testing.T) {
	ObserveRun(Run{Result: ResultOK, Flows: 7, Conversations: 5})
	invalidBefore := testutil.ToFloat64(AnalysisRunsTotal.WithLabelValues(ResultInvalid))

	ObserveRun(Run{Result: ResultInvalid, Flows: 1, Conversations: 1})

	assert.Equal(t, invalidBefore+1, testutil.ToFloat64(AnalysisRunsTotal.WithLabelValues(ResultInvalid)))
	assert.Equal(t, 7.0, testutil.ToFloat64(LastRunFlows))
	assert.Equal(t, 5.0, testutil.ToFloat64(LastRunConversations))
}

func TestServerServesMetrics(t *testing.T) {
	ObserveRun(Run{Result: ResultOK})

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "pcaplens_analysis_runs_total"))
}

func TestServerStopBeforeStart(t *testing.T) {
	s := NewServer(":0", "/m")
	assert.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "", s.Addr())
}
