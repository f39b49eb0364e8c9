package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"radiovespa/utils"
)

// Options configures a probe run.
type Options struct {
	URL      string
	Attempts int
	Timeout  time.Duration
	// ScrollSteps is how many viewport-sized scrolls are made through the list.
	ScrollSteps int
}

// Report is what a headless browser saw on the directory page.
type Report struct {
	Title     string `json:"title"`
	Cards     int    `json:"cards"`
	Featured  int    `json:"featured"`
	WithStats int    `json:"withStats"`
	Subheader string `json:"subheader"`
}

// Complete reports whether every card had its stats loaded after scrolling.
func (r *Report) Complete() bool {
	return r.Cards > 0 && r.WithStats == r.Cards
}

func (r *Report) String() string {
	return fmt.Sprintf("%q: %d cards (%d featured), stats loaded for %d, %q",
		r.Title, r.Cards, r.Featured, r.WithStats, r.Subheader)
}

const countScript = `
	(function() {
		var sub = document.querySelector('.subheader');
		return {
			title:     document.title,
			cards:     document.querySelectorAll('.card').length,
			featured:  document.querySelectorAll('.card.featured').length,
			withStats: document.querySelectorAll('[data-stats][data-loaded]').length,
			subheader: sub ? sub.innerText.trim() : ''
		};
	})()
`

// Prober drives a headless Chrome against the running front-end.
type Prober struct {
	opts   Options
	logger *utils.Logger
	retry  *utils.RetryConfig
}

func New(opts Options, logger *utils.Logger) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ScrollSteps <= 0 {
		opts.ScrollSteps = 8
	}
	// a page check always gives up eventually
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	return &Prober{
		opts:   opts,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.Attempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    20 * time.Second,
			Logger:      logger,
		},
	}
}

// Run loads the page, scrolls through the list so the lazy stats fire, and
// counts what was rendered.
func (p *Prober) Run(ctx context.Context) (*Report, error) {
	chromeBin := findChromeBinary()
	p.logger.Info("[probe] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(412, 915),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	var report Report
	err := p.retry.Do(ctx, "probe-page", func() error {
		tabCtx, cancel := chromedp.NewContext(browserCtx)
		defer cancel()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, p.opts.Timeout)
		defer cancelTimeout()

		actions := []chromedp.Action{
			chromedp.Navigate(p.opts.URL),
			chromedp.WaitReady("body"),
		}
		for i := 0; i < p.opts.ScrollSteps; i++ {
			actions = append(actions,
				chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
				chromedp.Sleep(400*time.Millisecond),
			)
		}
		actions = append(actions,
			chromedp.Sleep(time.Second),
			chromedp.Evaluate(countScript, &report),
		)

		if err := chromedp.Run(tabCtx, actions...); err != nil {
			return fmt.Errorf("chromedp run: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("[probe] %s", report.String())
	return &report, nil
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
