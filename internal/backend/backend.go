// Package backend opens the store selected by configuration for each record
// kind. Callers receive a handle and pass it on; nothing is cached here.
package backend

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/shelf/internal/codec"
	"github.com/roach88/shelf/internal/config"
	"github.com/roach88/shelf/internal/ident"
	"github.com/roach88/shelf/internal/record"
	"github.com/roach88/shelf/internal/schema"
	"github.com/roach88/shelf/internal/store"
	"github.com/roach88/shelf/internal/store/bolt"
	"github.com/roach88/shelf/internal/store/sqlite"
)

// ErrUnsupported is returned when a backend cannot hold a record kind, or
// the backend itself is unknown.
var ErrUnsupported = errors.New("record kind not supported by backend")

// Deps are the collaborators injected into every store.
type Deps struct {
	// Logger receives store diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// IDs generates verse ids. Defaults to UUIDv7.
	IDs ident.Generator

	// SkipValidation disables the CUE checks on insert.
	SkipValidation bool
}

// OpenImages opens the image store described by cfg.
func OpenImages(cfg config.StoreConfig, deps Deps) (store.Store[record.Image], error) {
	v, err := validator(record.KindImage, deps)
	if err != nil {
		return nil, err
	}
	base := store.Options{Strict: cfg.Strict, Logger: deps.Logger}

	switch cfg.Backend {
	case config.BackendSQLite:
		opts := sqlite.Options{Options: base}
		if v != nil {
			opts.Validator = v
		}
		s, err := sqlite.Open(cfg.Path, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBolt, "":
		opts, err := boltOptions(cfg, base, record.KindImage, bolt.Sequence{}, v)
		if err != nil {
			return nil, err
		}
		s, err := bolt.Open[record.Image](cfg.Path, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend %q: %w", cfg.Backend, ErrUnsupported)
	}
}

// OpenVerses opens the verse store described by cfg. Verses have no
// relational table, so only the bolt backend can hold them.
func OpenVerses(cfg config.StoreConfig, deps Deps) (store.Store[record.Verse], error) {
	switch cfg.Backend {
	case config.BackendBolt, "":
	case config.BackendSQLite:
		return nil, fmt.Errorf("%s on %s: %w", record.KindVerse, cfg.Backend, ErrUnsupported)
	default:
		return nil, fmt.Errorf("unknown backend %q: %w", cfg.Backend, ErrUnsupported)
	}

	v, err := validator(record.KindVerse, deps)
	if err != nil {
		return nil, err
	}
	gen := deps.IDs
	if gen == nil {
		gen = ident.UUIDv7Generator{}
	}

	base := store.Options{Strict: cfg.Strict, Logger: deps.Logger}
	opts, err := boltOptions(cfg, base, record.KindVerse, bolt.UUID{Generator: gen}, v)
	if err != nil {
		return nil, err
	}
	s, err := bolt.Open[record.Verse](cfg.Path, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func boltOptions(cfg config.StoreConfig, base store.Options, kind string, keys bolt.KeyScheme, v *schema.CUE) (bolt.Options, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return bolt.Options{}, err
	}
	opts := bolt.Options{
		Options: base,
		Bucket:  kind,
		Keys:    keys,
		Codec:   c,
		Timeout: cfg.Timeout,
	}
	// a nil *CUE stored in the interface would not compare equal to nil
	if v != nil {
		opts.Validator = v
	}
	return opts, nil
}

func validator(kind string, deps Deps) (*schema.CUE, error) {
	if deps.SkipValidation {
		return nil, nil
	}
	v, err := schema.ForKind(kind)
	if err != nil {
		return nil, fmt.Errorf("load %s schema: %w", kind, err)
	}
	return v, nil
}
