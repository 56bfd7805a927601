package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/pcaplens/internal/config"
	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/pipeline"
	"firestige.xyz/pcaplens/internal/report"
	"firestige.xyz/pcaplens/internal/testutil"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Run(ctx context.Context, r io.Reader) (*report.AnalysisReport, error) {
	args := m.Called(ctx, r)
	rep, _ := args.Get(0).(*report.AnalysisReport)
	return rep, args.Error(1)
}

func (m *mockAnalyzer) RuleNames() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *mockAnalyzer) Stats() pipeline.MetricsSnapshot {
	args := m.Called()
	return args.Get(0).(pipeline.MetricsSnapshot)
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Listen:          "127.0.0.1:0",
		MaxUploadBytes:  1 << 20,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: time.Second,
	}
}

func sampleReport() *report.AnalysisReport {
	return report.Build(nil, []core.Issue{{
		Rule: "suspicious_ports", Severity: core.SeverityCritical, Title: "Suspicious Port Activity",
	}})
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeJSON(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Run", mock.Anything, mock.Anything).Return(sampleReport(), nil).Once()
	s := New(a, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze", strings.NewReader("pcap"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got report.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "suspicious_ports", got.Issues[0].Rule)
	a.AssertExpectations(t)
}

func TestAnalyzeYAML(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Run", mock.Anything, mock.Anything).Return(sampleReport(), nil).Once()
	s := New(a, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze?format=YAML", strings.NewReader("pcap"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, got, "issues")
	assert.Contains(t, got, "tcp_stats")
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	a := &mockAnalyzer{}
	s := New(a, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze?format=xml", strings.NewReader("pcap"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown report format")
	a.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

func TestAnalyzeErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid capture", fmt.Errorf("%w: bad magic", core.ErrInvalidCapture), http.StatusBadRequest},
		{"pcapng", core.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{"too large", fmt.Errorf("%w: %w", core.ErrCaptureRead, &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
		{"read failure", fmt.Errorf("%w: disk", core.ErrCaptureRead), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &mockAnalyzer{}
			a.On("Run", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			s := New(a, testServerConfig(), config.MetricsConfig{})

			rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze", strings.NewReader("pcap"))

			assert.Equal(t, tt.want, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestAnalyzeRealPipeline(t *testing.T) {
	c := testutil.NewCapture(t)
	for i := 0; i < 4; i++ {
		c.AddAt(time.Duration(i)*time.Millisecond, testutil.UDP(t, testutil.UDPSpec{
			Src: "10.0.0.1", Dst: "10.0.0.2", SrcPort: 5353, DstPort: 53, Payload: []byte("query"),
		}))
	}
	s := New(pipeline.New(pipeline.Config{}), testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze?format=json", bytes.NewReader(c.Bytes()))

	require.Equal(t, http.StatusOK, rec.Code)
	var got report.AnalysisReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.PacketCount)
	assert.Equal(t, 4, got.ProtocolDistribution[core.LabelDNS])
}

func TestAnalyzeUploadLimit(t *testing.T) {
	c := testutil.NewCapture(t)
	for i := 0; i < 4; i++ {
		c.AddAt(time.Duration(i)*time.Millisecond, testutil.UDP(t, testutil.UDPSpec{
			Src: "10.0.0.1", Dst: "10.0.0.2", SrcPort: 5000, DstPort: 5001, Payload: make([]byte, 64),
		}))
	}
	cfg := testServerConfig()
	cfg.MaxUploadBytes = 100
	s := New(pipeline.New(pipeline.Config{}), cfg, config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze", bytes.NewReader(c.Bytes()))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeRejectsPcapNG(t *testing.T) {
	s := New(pipeline.New(pipeline.Config{}), testServerConfig(), config.MetricsConfig{})

	body := append([]byte{0x0A, 0x0D, 0x0D, 0x0A}, make([]byte, 28)...)
	rec := do(t, s.Handler(), http.MethodPost, "/api/v1/analyze", bytes.NewReader(body))

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/analyze"},
		{http.MethodPut, "/api/v1/analyze"},
		{http.MethodPost, "/api/v1/rules"},
		{http.MethodDelete, "/api/v1/stats"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			a := &mockAnalyzer{}
			s := New(a, testServerConfig(), config.MetricsConfig{})

			rec := do(t, s.Handler(), tt.method, tt.target, nil)

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			a.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestUnknownRouteNotFound(t *testing.T) {
	s := New(&mockAnalyzer{}, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Stats").Return(pipeline.MetricsSnapshot{Runs: 2, Failures: 1, Frames: 40, Malformed: 3}).Once()
	s := New(a, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, pipeline.MetricsSnapshot{Runs: 2, Failures: 1, Frames: 40, Malformed: 3}, got)
	a.AssertExpectations(t)
}

func TestStatsRealPipeline(t *testing.T) {
	c := testutil.NewCapture(t)
	c.AddAt(0, testutil.ICMPEcho(t, "10.0.0.1", "10.0.0.2"))
	s := New(pipeline.New(pipeline.Config{}), testServerConfig(), config.MetricsConfig{})

	require.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodPost, "/api/v1/analyze", bytes.NewReader(c.Bytes())).Code)
	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 1, got.Runs)
	assert.EqualValues(t, 1, got.Frames)
}

func TestRules(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("RuleNames").Return([]string{"suspicious_ports", "tcp_retransmissions"}).Once()
	s := New(a, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodGet, "/api/v1/rules", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"suspicious_ports", "tcp_retransmissions"}, body["rules"])
}

func TestHealthz(t *testing.T) {
	s := New(&mockAnalyzer{}, testServerConfig(), config.MetricsConfig{})

	rec := do(t, s.Handler(), http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	mounted := New(&mockAnalyzer{}, testServerConfig(), config.MetricsConfig{Enabled: true, Path: "/metrics"})
	rec := do(t, mounted.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pcaplens_frames_total")

	separate := New(&mockAnalyzer{}, testServerConfig(), config.MetricsConfig{Enabled: true, Path: "/metrics", Listen: ":9100"})
	rec = do(t, separate.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	disabled := New(&mockAnalyzer{}, testServerConfig(), config.MetricsConfig{Path: "/metrics"})
	rec = do(t, disabled.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStop(t *testing.T) {
	s := New(&mockAnalyzer{}, testServerConfig(), config.MetricsConfig{})
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
