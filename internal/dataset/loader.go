package dataset

import (
	"context"
	"math/rand"
	"sync"

	"github.com/Mirlan-code/video-classification-cv/internal/domain/entity"
	"go.uber.org/zap"
)

// Source is what the loader iterates; satisfied by *VideoDataset.
type Source interface {
	Len() int
	Sample(ctx context.Context, i int) (*entity.VideoSample, error)
}

type LoaderConfig struct {
	BatchSize int
	Workers   int
	Shuffle   bool
	DropLast  bool
	Seed      int64
}

// Loader assembles dataset samples into batches. The samples of each batch
// are loaded by a small worker pool so decoding overlaps with the compute on
// the previous batch; batches are emitted strictly in order.
type Loader struct {
	src    Source
	cfg    LoaderConfig
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewLoader(src Source, cfg LoaderConfig, logger *zap.Logger) *Loader {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Loader{
		src:    src,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NumBatches is the number of batches one epoch yields.
func (l *Loader) NumBatches() int {
	n := l.src.Len() / l.cfg.BatchSize
	if !l.cfg.DropLast && l.src.Len()%l.cfg.BatchSize != 0 {
		n++
	}
	return n
}

// Batches streams the batches of one epoch. The error channel is buffered
// and carries at most one error; consumers must drain the batch channel and
// then check it.
func (l *Loader) Batches(ctx context.Context) (<-chan *entity.FrameBatch, <-chan error) {
	out := make(chan *entity.FrameBatch, 1)
	errc := make(chan error, 1)

	order := l.epochOrder()

	go func() {
		defer close(out)
		for start := 0; start < len(order); start += l.cfg.BatchSize {
			end := start + l.cfg.BatchSize
			if end > len(order) {
				if l.cfg.DropLast {
					return
				}
				end = len(order)
			}

			samples, err := l.loadSamples(ctx, order[start:end])
			if err != nil {
				errc <- err
				return
			}

			batch, err := Collate(samples)
			if err != nil {
				errc <- err
				return
			}

			select {
			case out <- batch:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}

func (l *Loader) epochOrder() []int {
	order := make([]int, l.src.Len())
	for i := range order {
		order[i] = i
	}
	if l.cfg.Shuffle {
		l.mu.Lock()
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		l.mu.Unlock()
	}
	return order
}

// loadSamples fills one batch with the worker pool, keeping slot order.
func (l *Loader) loadSamples(ctx context.Context, indices []int) ([]*entity.VideoSample, error) {
	samples := make([]*entity.VideoSample, len(indices))
	jobs := make(chan int)

	workers := l.cfg.Workers
	if workers > len(indices) {
		workers = len(indices)
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slot := range jobs {
				s, err := l.src.Sample(workerCtx, indices[slot])
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					return
				}
				samples[slot] = s
			}
		}()
	}

feed:
	for slot := range indices {
		select {
		case jobs <- slot:
		case <-workerCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
