package main

import (
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// buildProgress renders index build progress as a terminal bar. Update may be called
// from concurrent embedding workers.
type buildProgress struct {
	p    *mpb.Progress
	mu   sync.Mutex
	bar  *mpb.Bar
	done int
}

func newBuildProgress(w io.Writer) *buildProgress {
	return &buildProgress{p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(80))}
}

func (b *buildProgress) Update(done, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		b.bar = b.p.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name("Embedding chunks: "),
				decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
			),
		)
	}
	if done > b.done {
		b.done = done
		b.bar.SetCurrent(int64(done))
	}
}

// Finish waits for the bar to render. A failed build aborts the bar first.
func (b *buildProgress) Finish(ok bool) {
	b.mu.Lock()
	if b.bar != nil && !ok {
		b.bar.Abort(false)
	}
	b.mu.Unlock()
	b.p.Wait()
}
