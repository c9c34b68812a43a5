// Package inspect parses batches of ELF files and renders the results.
package inspect

import (
	"bytes"
	"context"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/grafana/elfinspect/pkg/elf"
)

// Result is the outcome of inspecting one file.
type Result struct {
	Path       string
	Size       int64  // size on disk
	Hash       uint64 // xxhash of the decompressed contents
	Compressed bool
	// File is shared by every Result served from the same cache entry,
	// Progs and Notes included. Treat it as read-only.
	File       *elf.File
	BuildID    elf.BuildID
	Cached     bool
	Err        error
}

type cacheKey struct {
	hash   uint64
	offset int64
	notes  bool
}

type cached struct {
	file *elf.File
	err  error
}

type Inspector struct {
	logger  log.Logger
	cfg     Config
	cache   *lru.Cache[cacheKey, cached]
	metrics *metrics
	elf     *elf.Metrics
}

func New(logger log.Logger, cfg Config, reg prometheus.Registerer) (*Inspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Inspector{
		logger:  logger,
		cfg:     cfg,
		metrics: newMetrics(reg),
		elf:     elf.NewMetrics(reg),
	}
	if cfg.CacheSize > 0 {
		c, err := lru.New[cacheKey, cached](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	return s, nil
}

// InspectFiles parses every path, at most Concurrency at a time. A failure on
// one file does not stop the others: results are returned in input order and
// the error aggregates every per-file error.
func (s *Inspector) InspectFiles(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Path: path, Err: err}
				return err
			}
			results[i] = s.inspect(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	var merr *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			merr = multierror.Append(merr, r.Err)
		}
	}
	return results, merr.ErrorOrNil()
}

func (s *Inspector) inspect(path string) Result {
	res := Result{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = errors.Wrapf(err, "read %s", path)
		s.metrics.files.WithLabelValues(statusError).Inc()
		return res
	}
	res.Size = int64(len(data))
	data, res.Compressed, err = decompress(data)
	if err != nil {
		res.Err = errors.Wrapf(err, "read %s", path)
		s.metrics.files.WithLabelValues(statusError).Inc()
		return res
	}
	res.Hash = xxhash.Sum64(data)

	key := cacheKey{hash: res.Hash, offset: s.cfg.Offset, notes: !s.cfg.SkipNotes}
	c, ok := s.lookup(key)
	if !ok {
		c.file, c.err = elf.Parse(bytes.NewReader(data), s.cfg.Offset,
			elf.WithLogger(log.With(s.logger, "path", path)),
			elf.WithMetrics(s.elf),
			elf.WithNotes(!s.cfg.SkipNotes),
		)
		if s.cache != nil {
			s.cache.Add(key, c)
		}
	}
	res.Cached = ok
	res.File = c.file
	if c.err != nil {
		res.Err = errors.Wrapf(c.err, "parse %s", path)
		s.metrics.files.WithLabelValues(statusError).Inc()
		level.Warn(s.logger).Log("msg", "failed to parse ELF file", "path", path, "err", c.err)
	} else {
		s.metrics.files.WithLabelValues(statusSuccess).Inc()
	}
	if res.File != nil {
		if id, err := res.File.BuildID(); err == nil {
			res.BuildID = id
		}
	}
	level.Debug(s.logger).Log("msg", "inspected", "path", path, "size", res.Size, "cached", ok)
	return res
}

func (s *Inspector) lookup(key cacheKey) (cached, bool) {
	if s.cache == nil {
		return cached{}, false
	}
	c, ok := s.cache.Get(key)
	if ok {
		s.metrics.cacheHits.Inc()
	}
	return c, ok
}
