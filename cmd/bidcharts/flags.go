package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/keyword-bid-charts/internal/config"
)

// flagOverrides holds command-line values. Only flags the user actually set
// replace the file and environment configuration.
type flagOverrides struct {
	history         string
	targeting       string
	impressionShare string

	output string
	format string
	width  int
	height int

	workers     int
	changedOnly bool
	failFast    bool

	timeout  time.Duration
	logLevel string
	logJSON  bool

	gcsBucket string
	gcsPrefix string

	bigQuery  bool
	projectID string
	dataset   string
	table     string
}

func (o *flagOverrides) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()

	f.StringVar(&o.history, "history", "", "Bid history CSV (path or gs:// URI)")
	f.StringVar(&o.targeting, "targeting", "", "Targeting report glob")
	f.StringVar(&o.impressionShare, "impression-share", "", "Search-term impression share report glob")

	f.StringVarP(&o.output, "output", "o", "", "Chart output root directory")
	f.StringVar(&o.format, "format", "", "Image format: png or jpeg")
	f.IntVar(&o.width, "width", 0, "Chart width in pixels")
	f.IntVar(&o.height, "height", 0, "Chart height in pixels")

	f.IntVarP(&o.workers, "workers", "w", 0, "Concurrent chart renderers")
	f.BoolVar(&o.changedOnly, "changed-only", false, "Chart only keywords whose bid changed on an active date")
	f.BoolVar(&o.failFast, "fail-fast", false, "Abort the run on the first failed chart")

	f.DurationVar(&o.timeout, "timeout", 0, "Overall run timeout")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	f.BoolVar(&o.logJSON, "log-json", false, "Log newline-delimited JSON")

	f.StringVar(&o.gcsBucket, "gcs-bucket", "", "Publish charts to this bucket")
	f.StringVar(&o.gcsPrefix, "gcs-prefix", "", "Object prefix for published charts")

	f.BoolVar(&o.bigQuery, "bigquery", false, "Export keyword series to BigQuery")
	f.StringVar(&o.projectID, "project", "", "Google Cloud project for BigQuery")
	f.StringVar(&o.dataset, "dataset", "", "BigQuery dataset")
	f.StringVar(&o.table, "table", "", "BigQuery table")
}

// apply copies every changed flag into cfg.
func (o *flagOverrides) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	set := func(name string, fn func()) {
		if f.Changed(name) {
			fn()
		}
	}

	set("history", func() { cfg.Inputs.History = o.history })
	set("targeting", func() { cfg.Inputs.Targeting = o.targeting })
	set("impression-share", func() { cfg.Inputs.ImpressionShare = o.impressionShare })

	set("output", func() { cfg.Output.Root = o.output })
	set("format", func() { cfg.Output.Format = o.format })
	set("width", func() { cfg.Output.Width = o.width })
	set("height", func() { cfg.Output.Height = o.height })

	set("workers", func() { cfg.Render.Workers = o.workers })
	set("changed-only", func() { cfg.Render.ChangedKeywordsOnly = o.changedOnly })
	set("fail-fast", func() { cfg.Render.FailFast = o.failFast })

	set("timeout", func() { cfg.Run.Timeout = o.timeout.String() })
	set("log-level", func() { cfg.Log.Level = o.logLevel })
	set("log-json", func() { cfg.Log.JSON = o.logJSON })

	set("gcs-bucket", func() { cfg.GCS.Bucket = o.gcsBucket })
	set("gcs-prefix", func() { cfg.GCS.Prefix = o.gcsPrefix })

	set("bigquery", func() { cfg.BigQuery.Enabled = o.bigQuery })
	set("project", func() { cfg.BigQuery.ProjectID = o.projectID })
	set("dataset", func() { cfg.BigQuery.Dataset = o.dataset })
	set("table", func() { cfg.BigQuery.Table = o.table })
}
