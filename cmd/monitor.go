package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/webitel/im-notification-gateway/internal/domain/model"
)

const monitorHistory = 120

var errMonitorQuit = errors.New("monitor: quit")

// monitorCmd renders a live view of a running gateway's /stats endpoint.
func monitorCmd() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Watch subscribers and delivery counters of a running gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "http://localhost:8080", Usage: "Gateway base URL"},
			&cli.DurationFlag{Name: "interval", Value: time.Second},
		},
		Action: func(c *cli.Context) error {
			return runMonitor(c.Context, strings.TrimRight(c.String("addr"), "/"), c.Duration("interval"))
		},
	}
}

func runMonitor(ctx context.Context, addr string, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: terminal init: %w", err)
	}
	defer ui.Close()

	g, ctx := errgroup.WithContext(ctx)
	samples := make(chan model.HubStats, 1)

	// [POLLER]
	g.Go(func() error {
		client := &http.Client{Timeout: interval}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			stats, err := fetchStats(ctx, client, addr)
			if err == nil {
				select {
				case samples <- stats:
				default:
				}
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	// [RENDERER]
	g.Go(func() error {
		view := newMonitorView(addr)
		view.render()
		events := ui.PollEvents()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e := <-events:
				switch e.ID {
				case "q", "<C-c>":
					return errMonitorQuit
				case "<Resize>":
					view.render()
				}
			case s := <-samples:
				view.update(s)
				view.render()
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errMonitorQuit) {
		return err
	}
	return nil
}

func fetchStats(ctx context.Context, client *http.Client, addr string) (model.HubStats, error) {
	var stats model.HubStats

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/stats", nil)
	if err != nil {
		return stats, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return stats, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("monitor: /stats returned %s", resp.Status)
	}
	err = json.NewDecoder(resp.Body).Decode(&stats)
	return stats, err
}

type monitorView struct {
	summary *widgets.Paragraph
	rate    *widgets.Sparkline
	subs    *widgets.Sparkline
	rates   *widgets.SparklineGroup

	last    *model.HubStats
	lastAt  time.Time
	history []float64
	online  []float64
}

func newMonitorView(addr string) *monitorView {
	v := &monitorView{
		summary: widgets.NewParagraph(),
		rate:    widgets.NewSparkline(),
		subs:    widgets.NewSparkline(),
	}
	v.summary.Title = " " + addr + " (q to quit) "
	v.summary.Text = "waiting for /stats..."

	v.rate.Title = "delivered/s"
	v.rate.LineColor = ui.ColorGreen
	v.subs.Title = "subscribers"
	v.subs.LineColor = ui.ColorCyan
	v.rates = widgets.NewSparklineGroup(v.rate, v.subs)
	v.rates.Title = " traffic "
	return v
}

func (v *monitorView) update(s model.HubStats) {
	now := time.Now()
	if v.last != nil && s.Delivered >= v.last.Delivered {
		elapsed := now.Sub(v.lastAt).Seconds()
		if elapsed > 0 {
			v.history = appendSample(v.history, float64(s.Delivered-v.last.Delivered)/elapsed)
		}
	}
	v.last, v.lastAt = &s, now
	v.online = appendSample(v.online, float64(s.TotalSubscribers))

	v.summary.Text = fmt.Sprintf(
		"subscribers: %d   tags: %d   uptime: %s\ndelivered: %d   dropped: %d   unrouted: %d",
		s.TotalSubscribers, s.TotalTags, s.Uptime.Truncate(time.Second),
		s.Delivered, s.Dropped, s.Unrouted,
	)

	v.rate.Data, v.rate.MaxVal = v.history, peak(v.history)
	v.subs.Data, v.subs.MaxVal = v.online, peak(v.online)
}

func (v *monitorView) render() {
	w, h := ui.TerminalDimensions()
	v.summary.SetRect(0, 0, w, 4)
	v.rates.SetRect(0, 4, w, h)
	ui.Render(v.summary, v.rates)
}

func appendSample(samples []float64, x float64) []float64 {
	samples = append(samples, x)
	if len(samples) > monitorHistory {
		samples = samples[len(samples)-monitorHistory:]
	}
	return samples
}

func peak(samples []float64) float64 {
	m := 1.0
	for _, x := range samples {
		m = max(m, x)
	}
	return m
}
