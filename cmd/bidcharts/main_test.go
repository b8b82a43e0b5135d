package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/keyword-bid-charts/internal/config"
	"github.com/dvloznov/keyword-bid-charts/internal/jobs"
	"github.com/dvloznov/keyword-bid-charts/internal/pipeline"
)

func TestFlagOverrides(t *testing.T) {
	var o flagOverrides
	cmd := &cobra.Command{Use: "test"}
	o.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--workers", "3",
		"--format", "jpeg",
		"--changed-only",
		"--timeout", "90s",
		"--gcs-bucket", "charts",
	}))

	cfg := config.DefaultConfig()
	o.apply(cmd, cfg)

	assert.Equal(t, 3, cfg.Render.Workers)
	assert.Equal(t, "jpeg", cfg.Output.Format)
	assert.True(t, cfg.Render.ChangedKeywordsOnly)
	assert.Equal(t, "1m30s", cfg.Run.Timeout)
	assert.Equal(t, "charts", cfg.GCS.Bucket)

	// Unset flags keep the configured values.
	assert.Equal(t, "Images", cfg.Output.Root)
	assert.Equal(t, 1000, cfg.Output.Width)
	assert.False(t, cfg.Render.FailFast)
	assert.NoError(t, cfg.Validate())
}

func TestUsesGCS(t *testing.T) {
	tests := []struct {
		name string
		in   config.InputsConfig
		want bool
	}{
		{"local", config.DefaultConfig().Inputs, false},
		{"history in bucket", config.InputsConfig{History: "gs://b/h.csv", Targeting: "t/*.csv", ImpressionShare: "i/*.csv"}, true},
		{"reports in bucket", config.InputsConfig{History: "h.csv", Targeting: "t/*.csv", ImpressionShare: "gs://b/is/*.csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usesGCS(tt.in))
		})
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &pipeline.PipelineState{
		RunDir:   "Images/2024.01.01_2024.01.02",
		Summary:  jobs.Summary{Total: 3, Completed: 2, Failed: 1},
		Failures: []pipeline.Failure{{AdGroup: "A", Keyword: "k2", Err: errors.New("boom")}},
	})

	out := buf.String()
	assert.Contains(t, out, "Charts: 3 total, 2 rendered, 1 failed")
	assert.Contains(t, out, "Output: Images/2024.01.01_2024.01.02")
	assert.Contains(t, out, "FAILED A/k2: boom")
}

func TestReconcileCommand(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"bid_history.csv": "Date,Ad Group,Keyword,From Bid,To Bid\n" +
			"2024-01-01,A,k1,1.00,1.20\n",
		"tr/report.csv": "Date,Ad Group Name,Targeting,Cost Per Click (CPC),Impressions,Click-Thru Rate (CTR),7 Day Conversion Rate,Total Return on Advertising Spend (RoAS)\n" +
			"2024-01-01,A,k1,$1.10,100,1%,5%,2\n",
		"is/report.csv": "Date,Customer Search Term,Ad Group Name,Match Type,Search Term Impression Rank,Search Term Impression Share\n" +
			"2024-01-01,k1,A,EXACT,1,50%\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	out := filepath.Join(dir, "out", "records.csv")

	rootCmd.SetArgs([]string{
		"reconcile",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--history", filepath.Join(dir, "bid_history.csv"),
		"--targeting", filepath.Join(dir, "tr", "*.csv"),
		"--impression-share", filepath.Join(dir, "is", "*.csv"),
		"--log-level", "error",
		"--out", out,
	})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Date,Ad Group Name,Targeting,"))
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01,A,k1,true,true,"))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetOut(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "bidcharts dev\n", buf.String())
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bidcharts.yaml")

	rootCmd.SetArgs([]string{"config", "init", "--config", path, "--workers", "2"})
	require.NoError(t, rootCmd.Execute())

	saved, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Render.Workers)

	rootCmd.SetArgs([]string{"config", "init", "--config", path})
	assert.Error(t, rootCmd.Execute(), "existing file must not be overwritten without --force")
}
