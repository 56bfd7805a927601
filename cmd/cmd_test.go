package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/pcaplens/internal/config"
	"firestige.xyz/pcaplens/internal/core"
	"firestige.xyz/pcaplens/internal/report"
	"firestige.xyz/pcaplens/internal/rules"
)

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) RunFile(ctx context.Context, path string) (*report.AnalysisReport, error) {
	args := m.Called(ctx, path)
	rep, _ := args.Get(0).(*report.AnalysisReport)
	return rep, args.Error(1)
}

func TestRunAnalyze_JSON(t *testing.T) {
	mockAnalyzer := new(MockAnalyzer)
	mockAnalyzer.On("RunFile", mock.Anything, "trace.pcap").Return(report.Build(nil, nil), nil)

	var buf bytes.Buffer
	err := runAnalyze(context.Background(), mockAnalyzer, "trace.pcap", "JSON", &buf)

	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []any{}, got["issues"])
	mockAnalyzer.AssertExpectations(t)
}

func TestRunAnalyze_Text(t *testing.T) {
	mockAnalyzer := new(MockAnalyzer)
	mockAnalyzer.On("RunFile", mock.Anything, "trace.pcap").Return(report.Build(nil, nil), nil)

	var buf bytes.Buffer
	err := runAnalyze(context.Background(), mockAnalyzer, "trace.pcap", "text", &buf)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Capture Analysis")
}

func TestRunAnalyze_UnknownFormat(t *testing.T) {
	mockAnalyzer := new(MockAnalyzer)

	var buf bytes.Buffer
	err := runAnalyze(context.Background(), mockAnalyzer, "trace.pcap", "xml", &buf)

	assert.True(t, errors.Is(err, core.ErrUnknownFormat))
	assert.Empty(t, buf.String())
	mockAnalyzer.AssertNotCalled(t, "RunFile", mock.Anything, mock.Anything)
}

func TestRunAnalyze_Failure(t *testing.T) {
	mockAnalyzer := new(MockAnalyzer)
	mockAnalyzer.On("RunFile", mock.Anything, "missing.pcap").Return(nil, core.ErrSourceOpen)

	var buf bytes.Buffer
	err := runAnalyze(context.Background(), mockAnalyzer, "missing.pcap", "json", &buf)

	assert.True(t, errors.Is(err, core.ErrSourceOpen))
	assert.Contains(t, err.Error(), "analysis failed")
	assert.Empty(t, buf.String())
}

func TestRunValidate_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcaplens.yml")
	require.NoError(t, os.WriteFile(path, []byte("pcaplens:\n  analysis:\n    extended_rules: true\n"), 0o644))

	var buf bytes.Buffer
	err := runValidate(path, &buf)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "VALID:"))
	assert.Contains(t, buf.String(), "extended rules true")
	assert.Contains(t, buf.String(), "metrics /metrics")
}

func TestRunValidate_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pcaplens.yml")
	require.NoError(t, os.WriteFile(path, []byte("pcaplens:\n  log:\n    level: loud\n"), 0o644))

	var buf bytes.Buffer
	err := runValidate(path, &buf)

	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	assert.True(t, strings.HasPrefix(buf.String(), "INVALID:"))
}

func TestRunRules(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runRules(rules.NewEngine(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "RULE")
	assert.Contains(t, lines[1], rules.SuspiciousPorts)
	assert.Contains(t, lines[1], string(core.SeverityCritical))
	assert.Contains(t, lines[6], rules.IPFragmentation)

	buf.Reset()
	require.NoError(t, runRules(rules.NewEngine(rules.WithExtended(true)), &buf))
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 14)
}

func TestRunServe_Shutdown(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Metrics.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServe did not return after cancellation")
	}
}

func TestRunServe_ListenError(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Listen = "127.0.0.1:-1"

	assert.Error(t, runServe(context.Background(), cfg))
}

func TestRootCommandTree(t *testing.T) {
	names := make([]string, 0)
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"analyze", "serve", "validate", "rules"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("log-level"))
}
