// Package storage holds the sinks finished markdown is written to: a local
// output directory and, optionally, an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Cortexa-LLC/mcp/src/mdconvert/config"
)

// Sink stores one markdown document under name and returns its location.
type Sink interface {
	Save(ctx context.Context, name, markdown string) (string, error)
}

// Remover is implemented by sinks that can undo a Save.
type Remover interface {
	Remove(ctx context.Context, location string) error
}

var errBadName = errors.New("invalid output name")

// cleanName rejects names that would leave the target directory or prefix.
func cleanName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", errBadName, name)
	}
	return base, nil
}

// Dir writes markdown into a local directory. Each file appears atomically:
// it is written to a temp file in the same directory and renamed.
type Dir struct {
	root string
}

// NewDir returns a Dir rooted at root, creating it if needed.
func NewDir(root string) (*Dir, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute output directory.
func (d *Dir) Root() string { return d.root }

// Save implements Sink. An existing file of the same name is replaced.
func (d *Dir) Save(ctx context.Context, name, markdown string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(d.root, ".mdconvert-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(markdown); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close output: %w", err)
	}
	dst := filepath.Join(d.root, name)
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("publish output: %w", err)
	}
	return dst, nil
}

// Remove implements Remover for a path returned by Save.
func (d *Dir) Remove(_ context.Context, location string) error {
	if filepath.Dir(location) != d.root {
		return fmt.Errorf("%w: %s is outside %s", errBadName, location, d.root)
	}
	if err := os.Remove(location); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Multi saves to every sink in order and reports the first location. When a
// later sink fails, earlier saves are undone where the sink supports it, so
// a failed conversion leaves no output behind.
type Multi struct {
	sinks []Sink
	log   zerolog.Logger
}

// NewMulti combines sinks. The first sink's location is reported.
func NewMulti(log zerolog.Logger, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, log: log}
}

// Save implements Sink.
func (m *Multi) Save(ctx context.Context, name, markdown string) (string, error) {
	type saved struct {
		sink     Sink
		location string
	}
	var done []saved
	for _, s := range m.sinks {
		loc, err := s.Save(ctx, name, markdown)
		if err != nil {
			for _, prev := range done {
				r, ok := prev.sink.(Remover)
				if !ok {
					continue
				}
				if rerr := r.Remove(context.WithoutCancel(ctx), prev.location); rerr != nil {
					m.log.Warn().Err(rerr).Str("location", prev.location).Msg("rollback of saved output failed")
				}
			}
			return "", err
		}
		done = append(done, saved{s, loc})
	}
	if len(done) == 0 {
		return "", nil
	}
	return done[0].location, nil
}

// FromConfig builds the configured sink: the output directory, plus the S3
// bucket when one is set.
func FromConfig(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Sink, error) {
	dir, err := NewDir(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if cfg.S3.Bucket == "" {
		return dir, nil
	}
	bucket, err := NewS3(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bucket", cfg.S3.Bucket).Str("prefix", cfg.S3.Prefix).Msg("uploading markdown to s3")
	return NewMulti(log, dir, bucket), nil
}
