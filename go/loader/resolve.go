package loader

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/oldmedia/dllexports/go/expand"
	"github.com/oldmedia/dllexports/go/models"
)

// Resolver unwraps compressed containers until it reaches an executable.
type Resolver struct {
	// MaxDepth is the number of containers that may be decompressed for one blob.
	MaxDepth      int
	MaxNameLength int
	Codec         models.Codec
	Logger        log.Logger
}

func NewResolver(cfg *models.Config) *Resolver {
	cfg = cfg.Normalized()
	return &Resolver{
		MaxDepth:      cfg.MaxDepth,
		MaxNameLength: cfg.MaxNameLength,
		Codec:         expand.Codec{},
		Logger:        cfg.Logger,
	}
}

type nameLimiter interface {
	setMaxNameLength(int)
}

func (r *Resolver) logger() log.Logger {
	if r.Logger == nil {
		return log.NewNopLogger()
	}
	return r.Logger
}

func (r *Resolver) codec() models.Codec {
	if r.Codec == nil {
		return expand.Codec{}
	}
	return r.Codec
}

func (r *Resolver) interpret(data []byte) (*File, error) {
	f, err := Interpret(data, r.codec())
	if err != nil {
		return nil, err
	}
	if l, ok := f.Exporter.(nameLimiter); ok && r.MaxNameLength > 0 {
		l.setMaxNameLength(r.MaxNameLength)
	}
	return f, nil
}

// Resolve classifies data and follows compressed containers until an
// executable yields its exports. A container found after MaxDepth hops fails
// with models.ErrDepthExceeded before it is decompressed. Disk images are
// rejected with models.ErrMultiFile; their members resolve one at a time.
func (r *Resolver) Resolve(data []byte) ([]models.Symbol, error) {
	logger := r.logger()
	for hops := 0; ; hops++ {
		f, err := r.interpret(data)
		if err != nil {
			return nil, errors.Wrapf(err, "hop %d", hops)
		}
		level.Debug(logger).Log("msg", "classified", "hop", hops, "format", f.Format, "size", len(data))
		switch {
		case f.Exporter != nil:
			syms, err := f.Exporter.Exports()
			if err != nil {
				return nil, errors.Wrapf(err, "%s exports", f.Format)
			}
			return syms, nil
		case f.Image != nil:
			return nil, errors.Wrapf(models.ErrMultiFile, "%s image with %d files", f.Format, f.Image.Len())
		}
		if hops >= r.MaxDepth {
			return nil, errors.Wrapf(models.ErrDepthExceeded, "%s container after %d hops", f.Format, hops)
		}
		if data, err = f.Container.Resolve(); err != nil {
			return nil, errors.Wrapf(err, "hop %d", hops)
		}
	}
}

// Expand decompresses exactly one container layer of data.
func (r *Resolver) Expand(data []byte) ([]byte, error) {
	format, err := Identify(data)
	if err != nil {
		return nil, err
	}
	if !format.Compressed() {
		return nil, errors.Wrapf(models.ErrUnrecognizedFormat, "%s is not a compressed container", format)
	}
	out, err := NewCompressedFile(format, data, r.codec()).Resolve()
	if err != nil {
		return nil, err
	}
	level.Debug(r.logger()).Log("msg", "expanded", "format", format, "in", len(data), "out", len(out))
	return out, nil
}
