package charts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/errgroup"

	"covidcli/internal/config"
	"covidcli/internal/infrastructure"
	"covidcli/pkg/contracts/domain"
)

// Snapshotter captures static PNG exports of rendered chart HTML
// through headless Chrome. One Snapshotter owns one browser process;
// each snapshot runs in its own tab.
type Snapshotter struct {
	cfg     config.ChartsConfig
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewSnapshotter creates a PNG snapshotter. metrics may be nil.
func NewSnapshotter(cfg config.ChartsConfig, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{cfg: cfg, logger: logger, metrics: metrics}
}

// SnapshotAll captures a PNG next to every HTML artifact in the index
// and records the PNG path on the artifact. Snapshots run under a
// bounded group sharing one browser allocator. A failed snapshot fails
// the whole export; the HTML artifacts are already on disk either way.
func (s *Snapshotter) SnapshotAll(ctx context.Context, index *domain.ChartIndex) error {
	if index == nil || len(index.Charts) == 0 {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(pixels(s.cfg.Width, 1200), pixels(s.cfg.Height, 650)),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Start the browser once so tabs spawn from a live process.
	if err := chromedp.Run(browserCtx); err != nil {
		return fmt.Errorf("failed to start headless chrome: %w", err)
	}

	workers := s.cfg.RenderWorkers
	if workers <= 0 {
		workers = 4
	}

	grp, grpCtx := errgroup.WithContext(browserCtx)
	grp.SetLimit(workers)
	for i := range index.Charts {
		artifact := &index.Charts[i]
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			pngPath := strings.TrimSuffix(artifact.HTMLPath, ".html") + ".png"
			if err := s.snapshot(grpCtx, artifact.HTMLPath, pngPath); err != nil {
				return fmt.Errorf("failed to snapshot chart %s: %w", artifact.Name, err)
			}
			artifact.PNGPath = pngPath
			return nil
		})
	}
	return grp.Wait()
}

// snapshot opens one chart file in a fresh tab, waits for the chart
// container echarts mounts into, and captures the full page.
func (s *Snapshotter) snapshot(ctx context.Context, htmlPath, pngPath string) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}

	tabCtx, cancelTab := chromedp.NewContext(ctx)
	defer cancelTab()

	timeout := s.cfg.SnapshotTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	start := time.Now()
	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.Navigate("file://" + abs),
		chromedp.WaitVisible(`div[id]`, chromedp.ByQuery),
		// echarts animates in; a short settle keeps the capture off
		// the entry animation.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&buf, 90),
	}
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return err
	}
	if err := os.WriteFile(pngPath, buf, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(pngPath), err)
	}

	infrastructure.RecordChartRender(ctx, s.metrics, "png", time.Since(start), true)
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"snapshot.file":  filepath.Base(pngPath),
		"snapshot.bytes": len(buf),
	})
	s.logger.Info("chart snapshot captured",
		slog.String("png", pngPath),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// pixels parses a CSS pixel size like "1100px", falling back when the
// value is not a plain pixel count.
func pixels(v string, fallback int) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
