package hcl

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/pagecost/internal/config"
	"github.com/vk/pagecost/internal/ctxlog"
)

// translate merges a decoded file into model. Attributes the file omits
// keep their current value.
func translate(ctx context.Context, root *fileRoot, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	if s := root.Simulation; s != nil && s.MaxConnectionsPerOrigin != nil {
		model.Simulation.MaxConnectionsPerOrigin = *s.MaxConnectionsPerOrigin
	}

	if n := root.Network; n != nil {
		if n.Throughput != nil {
			model.Network.Throughput = *n.Throughput
		}
		if err := setDuration(&model.Network.RTT, n.RTT, "network.rtt"); err != nil {
			return err
		}
		if err := setDuration(&model.Network.MinTaskDuration, n.MinTaskDuration, "network.min_task_duration"); err != nil {
			return err
		}
	}

	if s := root.Scoring; s != nil {
		if s.Median != nil {
			model.Scoring.Median = *s.Median
		}
		if s.PODR != nil {
			model.Scoring.PODR = *s.PODR
		}
	}

	for _, block := range root.Audits {
		a, ok := model.Audits[block.ID]
		if !ok {
			a = &config.Audit{ID: block.ID, Enabled: true}
			model.Audits[block.ID] = a
		}
		if block.Enabled != nil {
			a.Enabled = *block.Enabled
		}
		if block.Options != nil {
			exprs, err := bodyExpressions(block.Options.Body)
			if err != nil {
				return fmt.Errorf("audit '%s' options: %w", block.ID, err)
			}
			if a.Options == nil {
				a.Options = exprs
			} else {
				for name, expr := range exprs {
					a.Options[name] = expr
				}
			}
		}
		logger.Debug("Translated audit block.", "audit", a.ID, "enabled", a.Enabled, "options", len(a.Options))
	}
	return nil
}

func setDuration(dst *time.Duration, src *string, name string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}
