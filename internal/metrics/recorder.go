package metrics

import (
	"fmt"
	"time"
)

var latencyBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120}

// RecordEvent counts an inbound event by transport and content kind.
func (c *Collector) RecordEvent(channel, kind string) {
	c.Counter("linebot_events_total", "Inbound events by channel and kind",
		fmt.Sprintf("channel=%q,kind=%q", channel, kind)).Inc()
}

// RecordDenied counts events rejected by the access gate.
func (c *Collector) RecordDenied(kind string) {
	c.Counter("linebot_denied_total", "Events rejected by the access gate",
		fmt.Sprintf("kind=%q", kind)).Inc()
}

// RecordPipeline counts a pipeline run by outcome and observes its latency.
func (c *Collector) RecordPipeline(pipeline, outcome string, d time.Duration) {
	c.Counter("linebot_pipeline_runs_total", "Pipeline runs by outcome",
		fmt.Sprintf("pipeline=%q,outcome=%q", pipeline, outcome)).Inc()
	c.Histogram("linebot_pipeline_latency_seconds", "Pipeline latency in seconds",
		fmt.Sprintf("pipeline=%q", pipeline), latencyBuckets).Observe(d.Seconds())
}

// RecordArchive counts archival attempts by status.
func (c *Collector) RecordArchive(status string) {
	c.Counter("linebot_archive_total", "Archive attempts by status",
		fmt.Sprintf("status=%q", status)).Inc()
}

// RecordReply counts sent replies and reply failures.
func (c *Collector) RecordReply(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Counter("linebot_replies_total", "Replies sent by outcome",
		fmt.Sprintf("outcome=%q", outcome)).Inc()
}
