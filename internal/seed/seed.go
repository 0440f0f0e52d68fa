// Package seed generates synthetic respondents and pushes them through the
// survey form, for demos and load testing of a gateway.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/symeon158/CVF-Survey-App/internal/catalog"
	"github.com/symeon158/CVF-Survey-App/internal/survey"
)

type Options struct {
	Count   int
	Workers int
	Seed    int64
	// ReportEvery is the progress log interval, in appended rows.
	ReportEvery int
}

type Stats struct {
	Appended int
	Elapsed  time.Duration
}

func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Appended) / s.Elapsed.Seconds()
}

// Changes returns one random, complete and valid change set for cat.
func Changes(rng *rand.Rand, cat *catalog.Catalog) survey.ChangeSet {
	cs := survey.ChangeSet{
		Demographics: make(map[string]string, len(cat.Demographics)),
		Allocations:  make(map[string]int, len(cat.Sections)*catalog.OptionsPerSection),
	}
	for _, d := range cat.Demographics {
		cs.Demographics[d.Key] = d.Choices[rng.Intn(len(d.Choices))]
	}
	units := catalog.Points / cat.Step
	for _, s := range cat.Sections {
		keys := s.AllocationKeys()
		points := make([]int, len(keys))
		for range units {
			points[rng.Intn(len(keys))] += cat.Step
		}
		for i, k := range keys {
			cs.Allocations[k] = points[i]
		}
	}
	return cs
}

// Run submits opts.Count synthetic responses through form using
// opts.Workers concurrent respondents. It stops at the first append error.
func Run(ctx context.Context, form *survey.Form, opts Options, log *zap.Logger) (Stats, error) {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ReportEvery <= 0 {
		opts.ReportEvery = 1000
	}
	cat := form.Catalog()

	jobs := make(chan int64)
	var appended atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range opts.Count {
			select {
			case jobs <- opts.Seed + int64(i):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := range opts.Workers {
		g.Go(func() error {
			for n := range jobs {
				rng := rand.New(rand.NewSource(n))
				sess := form.NewSession(fmt.Sprintf("seed-%d-%d", w, n))
				if _, err := form.Apply(sess, Changes(rng, cat).Events()...); err != nil {
					return err
				}
				if _, err := form.Submit(ctx, sess); err != nil {
					return err
				}
				if done := appended.Add(1); done%int64(opts.ReportEvery) == 0 {
					elapsed := time.Since(start)
					log.Info("seed progress",
						zap.Int64("appended", done),
						zap.Int("total", opts.Count),
						zap.Float64("rows_per_sec", float64(done)/elapsed.Seconds()),
					)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return Stats{Appended: int(appended.Load()), Elapsed: time.Since(start)}, err
}
