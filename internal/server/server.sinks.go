// FilePath: server/watchdog/internal/server/server.sinks.go
package server

import (
	"fmt"

	"github.com/itsatony/w4b_v3/server/watchdog/internal/alerting"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/config"
	"github.com/itsatony/w4b_v3/server/watchdog/internal/notify"
	nuts "github.com/vaudience/go-nuts"
)

// buildSink assembles the configured notification targets. publisher is
// only consulted when a redis channel is configured.
func buildSink(cfg config.NotifyConfig, publisher notify.Publisher) (*notify.MultiSink, error) {
	tpl, err := notify.NewTemplate(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid notification template: %w", err)
	}

	var sinks []alerting.Sink
	if cfg.Log {
		sinks = append(sinks, notify.NewLogSink(tpl))
	}
	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookSink(cfg.WebhookURL, tpl, notify.WithTimeout(cfg.WebhookTimeout))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, webhook)
	}
	if cfg.RedisChannel != "" {
		redisSink, err := notify.NewRedisSink(publisher, cfg.RedisChannel)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, redisSink)
	}

	if len(sinks) == 0 {
		nuts.L.Warnf("[Server] No notification sinks configured; alerts are only latched")
	}
	return notify.NewMultiSink(sinks...), nil
}
