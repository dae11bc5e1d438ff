package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"mangashelf/internal/catalog"
	"mangashelf/internal/logging"
	"mangashelf/internal/metrics"
	"mangashelf/internal/progress"
	"mangashelf/internal/workers"

	"github.com/disintegration/imaging"
)

// Mode selects which entries a batch run processes.
type Mode int

const (
	// OnlyMissing skips entries that already have a thumbnail.
	OnlyMissing Mode = iota
	// RegenerateAll reprocesses every entry.
	RegenerateAll
)

const (
	// Hard ceiling on concurrent generation workers, independent of
	// input size.
	maxWorkers = 10

	// How often the background flusher drains the persistence queue.
	defaultFlushInterval = 5 * time.Second

	// How many times a failed flush re-queues an entry before dropping it.
	maxRequeue = 3
)

// Result reports one batch run.
type Result struct {
	Generated    int `json:"generated"`
	Placeholders int `json:"placeholders"`
	Skipped      int `json:"skipped"`
}

type pending struct {
	entry   *catalog.Entry
	retries int
}

// Pipeline generates thumbnails under bounded parallelism and persists
// them in deferred batches. The persistence queue is owned by a single
// flusher goroutine, triggered by a periodic ticker and by the explicit
// flush at the end of each batch run. Only one batch run should be active
// at a time.
type Pipeline struct {
	store         *catalog.Store
	gen           *Generator
	cache         *DisplayCache
	workerLimit   int
	flushInterval time.Duration

	mu    sync.Mutex
	queue []pending

	stopChan chan struct{}
	doneChan chan struct{}
	started  bool
}

// NewPipeline creates a Pipeline over store with the given display cache.
func NewPipeline(store *catalog.Store, cache *DisplayCache) *Pipeline {
	limit := workers.ForIO(maxWorkers)
	metrics.ThumbsWorkers.Set(float64(limit))

	return &Pipeline{
		store:         store,
		gen:           NewGenerator(),
		cache:         cache,
		workerLimit:   limit,
		flushInterval: defaultFlushInterval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start launches the background flusher.
func (p *Pipeline) Start() {
	if p.started {
		return
	}
	p.started = true
	go p.flushLoop()
}

// Stop stops the background flusher and drains the queue one last time.
func (p *Pipeline) Stop() {
	if !p.started {
		return
	}
	close(p.stopChan)
	<-p.doneChan
	if err := p.Flush(context.Background()); err != nil {
		logging.Error("final thumbnail flush failed: %v", err)
	}
}

func (p *Pipeline) flushLoop() {
	defer close(p.doneChan)

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Flush(context.Background()); err != nil {
				logging.Warn("periodic thumbnail flush failed: %v", err)
			}
		case <-p.stopChan:
			return
		}
	}
}

// Run processes entries with bounded parallelism, attaching thumbnail
// bytes and a generation timestamp to each and enqueueing it for deferred
// persistence. The queue is flushed synchronously before Run returns.
// Cancellation stops issuing new work; already generated thumbnails are
// still flushed.
func (p *Pipeline) Run(ctx context.Context, entries []*catalog.Entry, mode Mode, onProgress progress.Func) (*Result, error) {
	reporter := progress.NewReporter(onProgress)
	defer reporter.Flush()

	var todo []*catalog.Entry
	result := &Result{}
	for _, e := range entries {
		if mode == OnlyMissing && e.HasThumbnail() {
			result.Skipped++
			continue
		}
		todo = append(todo, e)
	}

	logging.Info("Thumbnail run: %d to generate, %d skipped, %d workers",
		len(todo), result.Skipped, p.workerLimit)

	sem := make(chan struct{}, p.workerLimit)
	var wg sync.WaitGroup
	var resultMu sync.Mutex
	done := 0

	for _, e := range todo {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(e *catalog.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			data, placeholder := p.gen.Generate(e.FilePath)
			now := time.Now()
			e.Thumbnail = data
			e.ThumbnailGeneratedAt = &now
			p.enqueue(pending{entry: e})

			resultMu.Lock()
			if placeholder {
				result.Placeholders++
			} else {
				result.Generated++
			}
			done++
			current := done
			resultMu.Unlock()

			reporter.Send(progress.Report{
				Current: current,
				Total:   len(todo),
				Name:    e.FileName,
				Status:  "generating",
			})
		}(e)
	}

	wg.Wait()

	if err := p.Flush(ctx); err != nil {
		return result, fmt.Errorf("thumbnail flush: %w", err)
	}
	return result, ctx.Err()
}

func (p *Pipeline) enqueue(item pending) {
	p.mu.Lock()
	p.queue = append(p.queue, item)
	depth := len(p.queue)
	p.mu.Unlock()
	metrics.ThumbsQueueDepth.Set(float64(depth))
}

// Flush drains the persistence queue into one UpdateBatch. On failure the
// drained entries are re-queued with a bounded retry count so a transient
// storage error does not drop generated thumbnails, while a persistent one
// cannot grow the queue without bound.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.queue
	p.queue = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		metrics.ThumbsQueueDepth.Set(0)
		return nil
	}

	entries := make([]*catalog.Entry, len(batch))
	for i, item := range batch {
		entries[i] = item.entry
	}

	if err := p.store.UpdateBatch(ctx, entries); err != nil {
		metrics.ThumbsFlushTotal.WithLabelValues("error").Inc()

		requeued := 0
		p.mu.Lock()
		for _, item := range batch {
			if item.retries+1 < maxRequeue {
				p.queue = append(p.queue, pending{entry: item.entry, retries: item.retries + 1})
				requeued++
			}
		}
		depth := len(p.queue)
		p.mu.Unlock()
		metrics.ThumbsQueueDepth.Set(float64(depth))

		logging.Warn("Thumbnail flush failed, re-queued %d of %d: %v", requeued, len(batch), err)
		return err
	}

	metrics.ThumbsFlushTotal.WithLabelValues("success").Inc()
	metrics.ThumbsQueueDepth.Set(0)
	logging.Debug("Flushed %d thumbnails", len(batch))
	return nil
}

// QueueDepth returns the number of entries awaiting persistence.
func (p *Pipeline) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Display returns the decoded display image for an entry, serving from the
// cache when possible and falling back to the stored blob.
func (p *Pipeline) Display(ctx context.Context, id int64) (image.Image, error) {
	if img, ok := p.cache.Get(id); ok {
		return img, nil
	}

	blob, err := p.store.GetThumbnail(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("no thumbnail stored for id %d", id)
	}

	img, err := imaging.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decode stored thumbnail for id %d: %w", id, err)
	}

	p.cache.Put(id, img)
	return img, nil
}
