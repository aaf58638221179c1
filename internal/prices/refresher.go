package prices

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vaultestim/vaultestim/internal/apperr"
	"github.com/vaultestim/vaultestim/internal/logging"
	"github.com/vaultestim/vaultestim/internal/metrics"
	"github.com/vaultestim/vaultestim/internal/tcg"
)

const DefaultConcurrency = 4

// Request asks for the price of one owned (card, version).
type Request struct {
	Card    tcg.Card `json:"card"`
	Version string   `json:"version"`
}

// Failure is a request that errored for a reason other than the quota.
type Failure struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
}

// Report summarizes one refresh run.
type Report struct {
	Updated  int       `json:"updated"`
	Deferred []Request `json:"deferred"`
	Failed   []Failure `json:"failed"`
	// Latency of the provider calls issued during the run.
	Latency metrics.Summary `json:"latency"`
}

// Sink stores prices as they arrive.
type Sink interface {
	SavePrice(ctx context.Context, p Price) error
}

// Refresher fetches a batch of prices with bounded concurrency. Each
// price is committed as soon as it is fetched; once the provider reports
// QuotaExceeded no further calls are issued and the rest is deferred.
type Refresher struct {
	provider    Provider
	sink        Sink
	logger      logging.Logger
	concurrency int
}

func NewRefresher(provider Provider, sink Sink, logger logging.Logger, concurrency int) *Refresher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Refresher{
		provider:    provider,
		sink:        sink,
		logger:      logger.With("component", "prices", "provider", provider.Name()),
		concurrency: concurrency,
	}
}

// Refresh never fails as a whole: per-request errors land in the report.
func (r *Refresher) Refresh(ctx context.Context, reqs []Request) Report {
	var (
		mu        sync.Mutex
		updated   atomic.Int32
		exhausted atomic.Bool
		deferred  = make(map[int]Request)
		failed    = make(map[int]Failure)
		latency   = metrics.NewHistogram(len(reqs))
	)
	deferReq := func(i int, req Request) {
		mu.Lock()
		deferred[i] = req
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, req := range reqs {
		if exhausted.Load() || ctx.Err() != nil {
			deferReq(i, req)
			continue
		}
		g.Go(func() error {
			if exhausted.Load() || ctx.Err() != nil {
				deferReq(i, req)
				return nil
			}
			start := time.Now()
			p, err := r.provider.Price(ctx, req.Card, req.Version)
			latency.Since(start)
			if err == nil {
				err = r.sink.SavePrice(ctx, p)
			}
			switch {
			case err == nil:
				updated.Add(1)
			case apperr.Is(err, apperr.QuotaExceeded):
				if !exhausted.Swap(true) {
					r.logger.Warn(ctx, "price quota exhausted, deferring remaining cards")
				}
				deferReq(i, req)
			case ctx.Err() != nil:
				deferReq(i, req)
			default:
				mu.Lock()
				failed[i] = Failure{Request: req, Error: err.Error()}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Updated: int(updated.Load()), Latency: latency.Summary()}
	for _, i := range sortedKeys(deferred) {
		rep.Deferred = append(rep.Deferred, deferred[i])
	}
	for _, i := range sortedKeys(failed) {
		rep.Failed = append(rep.Failed, failed[i])
	}
	r.logger.Info(ctx, "price refresh finished",
		"updated", rep.Updated, "deferred", len(rep.Deferred), "failed", len(rep.Failed),
		"p95Ms", rep.Latency.P95Ms)
	return rep
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
