package array

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/arraystream/blobstore"
	"github.com/hupe1980/arraystream/codec"
)

const (
	schemaName    = "__schema.json"
	fragmentsDir  = "__fragments"
	manifestDir   = "__manifest"
	currentName   = "CURRENT"
	manifestFmt   = "%020d.json"
	metaSeparator = '\n'
)

// Manifest is one committed version of an array.
type Manifest struct {
	Version   uint64         `json:"version"`
	Fragments []FragmentInfo `json:"fragments"`
	// Config records the pass-through configuration of the writer.
	Config map[string]string `json:"config,omitempty"`
}

// NNZ returns the number of stored cells.
func (m *Manifest) NNZ() uint64 {
	var n uint64
	for _, f := range m.Fragments {
		n += f.Rows
	}
	return n
}

func (m *Manifest) clone() Manifest {
	c := *m
	c.Fragments = append([]FragmentInfo(nil), m.Fragments...)
	return c
}

// encodeMeta prefixes the encoded value with the codec name so readers pick
// the matching codec.
func encodeMeta(c codec.Codec, v any) ([]byte, error) {
	body, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(c.Name())+1+len(body))
	out = append(out, c.Name()...)
	out = append(out, metaSeparator)
	return append(out, body...), nil
}

func decodeMeta(data []byte, v any) error {
	i := bytes.IndexByte(data, metaSeparator)
	if i < 0 {
		return fmt.Errorf("%w: metadata without codec", ErrCorrupt)
	}
	c, ok := codec.ByName(string(data[:i]))
	if !ok {
		return fmt.Errorf("%w: unknown metadata codec %q", ErrCorrupt, data[:i])
	}
	if err := c.Unmarshal(data[i+1:], v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

func loadSchema(ctx context.Context, store blobstore.BlobStore, uri string) (*Schema, error) {
	data, err := blobstore.Get(ctx, store, path.Join(uri, schemaName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrArrayNotFound, uri)
		}
		return nil, err
	}
	var s Schema
	if err := decodeMeta(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: stored schema: %v", ErrCorrupt, err)
	}
	return &s, nil
}

// loadManifest reads the manifest CURRENT points at. An array without
// CURRENT has an empty version 0 manifest.
func loadManifest(ctx context.Context, store blobstore.BlobStore, uri string) (Manifest, error) {
	cur, err := blobstore.Get(ctx, store, path.Join(uri, currentName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Manifest{}, nil
		}
		return Manifest{}, err
	}

	name := strings.TrimSpace(string(cur))
	data, err := blobstore.Get(ctx, store, path.Join(uri, name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Manifest{}, fmt.Errorf("%w: CURRENT names missing manifest %s", ErrCorrupt, name)
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := decodeMeta(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// commitManifest writes m and points CURRENT at it.
func commitManifest(ctx context.Context, store blobstore.BlobStore, c codec.Codec, uri string, m *Manifest) error {
	data, err := encodeMeta(c, m)
	if err != nil {
		return err
	}
	name := path.Join(manifestDir, fmt.Sprintf(manifestFmt, m.Version))
	if err := store.Put(ctx, path.Join(uri, name), data); err != nil {
		return err
	}
	return store.Put(ctx, path.Join(uri, currentName), []byte(name))
}
