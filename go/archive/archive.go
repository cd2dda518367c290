// Package archive exposes a classified blob to an archive host as a list of
// items that can be opened, resolved and closed one at a time.
package archive

import (
	"context"
	"sync"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/oldmedia/dllexports/go/image"
	"github.com/oldmedia/dllexports/go/loader"
	"github.com/oldmedia/dllexports/go/models"
)

var ErrSessionClosed = errors.New("session already closed")

// Archive is an opened blob. Disk images list their members as items; any other
// recognized blob is a single unnamed item.
type Archive struct {
	data     []byte
	format   loader.Format
	image    *image.Image
	entries  []image.Entry
	cfg      *models.Config
	resolver *loader.Resolver

	mu       sync.Mutex
	sessions int
}

func Open(data []byte, cfg *models.Config) (*Archive, error) {
	cfg = cfg.Normalized()
	resolver := loader.NewResolver(cfg)
	f, err := loader.Interpret(data, resolver.Codec)
	if err != nil {
		return nil, err
	}
	a := &Archive{
		data:     data,
		format:   f.Format,
		image:    f.Image,
		cfg:      cfg,
		resolver: resolver,
	}
	if f.Image != nil {
		a.entries = f.Image.Entries()
	} else {
		a.entries = []image.Entry{{FileEntry: image.FileEntry{Size: uint64(len(data))}}}
	}
	level.Debug(cfg.Logger).Log("msg", "opened archive", "format", f.Format, "items", len(a.entries))
	return a, nil
}

func (a *Archive) Format() loader.Format {
	return a.format
}

func (a *Archive) Count() int {
	return len(a.entries)
}

// Name returns the path of item i, or "" for a single-item archive.
func (a *Archive) Name(i int) string {
	if i < 0 || i >= len(a.entries) {
		return ""
	}
	return a.entries[i].Path
}

// Size returns the length of item i in bytes.
func (a *Archive) Size(i int) uint64 {
	if i < 0 || i >= len(a.entries) {
		return 0
	}
	return a.entries[i].Size
}

func (a *Archive) Names() []string {
	return lo.Map(a.entries, func(e image.Entry, _ int) string { return e.Path })
}

// Index finds the item stored at path p. Any spelling image.NormalizePath
// accepts will do. Single-item archives have no paths.
func (a *Archive) Index(p string) (int, error) {
	if a.image == nil {
		return -1, errors.Wrapf(models.ErrNotFound, "%s archive has no paths", a.format)
	}
	i, ok := a.image.Index(p)
	if !ok {
		return -1, errors.Wrapf(models.ErrNotFound, "%s", p)
	}
	return i, nil
}

// OpenPath opens the item stored at path p.
func (a *Archive) OpenPath(p string) (*Session, error) {
	i, err := a.Index(p)
	if err != nil {
		return nil, err
	}
	return a.OpenSession(i)
}

// OpenSessions reports how many sessions are currently open.
func (a *Archive) OpenSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions
}

// OpenSession slices item i out of the blob.
func (a *Archive) OpenSession(i int) (*Session, error) {
	if i < 0 || i >= len(a.entries) {
		return nil, errors.Wrapf(models.ErrNotFound, "item %d of %d", i, len(a.entries))
	}
	data, err := image.Slice(a.data, a.entries[i].FileEntry)
	if err != nil {
		return nil, errors.Wrapf(err, "item %s", a.entries[i].Path)
	}
	a.mu.Lock()
	a.sessions++
	a.mu.Unlock()
	return &Session{archive: a, index: i, data: data}, nil
}

// Session is one open item.
type Session struct {
	archive *Archive
	index   int
	data    []byte

	mu     sync.Mutex
	closed bool
}

func (s *Session) Name() string {
	return s.archive.Name(s.index)
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.WithStack(ErrSessionClosed)
	}
	return nil
}

// Bytes returns the raw item. The slice aliases the archive's buffer and must not
// be modified.
func (s *Session) Bytes() ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.data, nil
}

// Symbols resolves the item down to an executable and returns its exports.
func (s *Session) Symbols() ([]models.Symbol, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.archive.resolver.Resolve(s.data)
}

// Expand decompresses one container layer of the item.
func (s *Session) Expand() ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.archive.resolver.Expand(s.data)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.WithStack(ErrSessionClosed)
	}
	s.closed = true
	s.archive.mu.Lock()
	s.archive.sessions--
	s.archive.mu.Unlock()
	return nil
}

// Result is the outcome of resolving one item.
type Result struct {
	Index   int
	Name    string
	Symbols []models.Symbol
	Err     error
}

// ResolveAll resolves every item, at most cfg.Concurrency at a time. Item
// failures are kept in their Result and also returned together as one error;
// only cancellation of ctx aborts the run.
func (a *Archive) ResolveAll(ctx context.Context) ([]Result, error) {
	results := make([]Result, len(a.entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i := range results {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.resolve(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WithStack(err)
	}

	var merr *multierror.Error
	for _, r := range lo.Filter(results, func(r Result, _ int) bool { return r.Err != nil }) {
		merr = multierror.Append(merr, errors.Wrapf(r.Err, "item %q", r.Name))
	}
	return results, merr.ErrorOrNil()
}

func (a *Archive) resolve(i int) Result {
	res := Result{Index: i, Name: a.Name(i)}
	s, err := a.OpenSession(i)
	if err != nil {
		res.Err = err
		return res
	}
	defer s.Close()
	res.Symbols, res.Err = s.Symbols()
	level.Debug(a.cfg.Logger).Log("msg", "resolved", "item", res.Name, "symbols", len(res.Symbols), "err", res.Err)
	return res
}
