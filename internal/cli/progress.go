package cli

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func noop() {}

// spinner shows an open-ended indicator with elapsed time, used while
// recording until Enter and while waiting on the transcription API.
func (a *appState) spinner(description string) stopFunc {
	if !a.progressEnabled() {
		return noop
	}
	return runIndicator(newSpinnerBar(a.errWriter(), description), 120*time.Millisecond)
}

// countdown fills a bar over a fixed recording duration.
func (a *appState) countdown(description string, duration time.Duration) stopFunc {
	if !a.progressEnabled() || duration <= 0 {
		return noop
	}
	return runIndicator(newCountdownBar(a.errWriter(), description, duration), time.Second)
}

func newSpinnerBar(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func newCountdownBar(w io.Writer, description string, duration time.Duration) *progressbar.ProgressBar {
	seconds := max(int64(duration/time.Second), 1)
	return progressbar.NewOptions64(
		seconds,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// runIndicator advances bar every interval until the returned func is
// called. Stopping twice is fine.
func runIndicator(bar *progressbar.ProgressBar, interval time.Duration) stopFunc {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}
