// Package cache stores crawled documents as NDJSON so analysis can rerun without crawling.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/JakeFAU/nace-crawler/internal/crawler"
	"github.com/JakeFAU/nace-crawler/internal/document"
)

const contentType = "application/x-ndjson"

// escapeMode is written for compatibility with caches produced by the earlier tooling.
const escapeMode = "base"

type line struct {
	HTML       string `json:"html"`
	BaseURI    string `json:"baseUri"`
	Charset    string `json:"charset"`
	EscapeMode string `json:"escapeMode"`
}

// Store reads and writes crawl results through a BlobStore.
type Store struct {
	blobs  crawler.BlobStore
	hasher crawler.Hasher
	prefix string
}

// New builds a Store that keeps objects under prefix.
func New(blobs crawler.BlobStore, hasher crawler.Hasher, prefix string) *Store {
	return &Store{blobs: blobs, hasher: hasher, prefix: prefix}
}

// Path names the object for a partner key, or for the URL's digest when key is empty.
func (s *Store) Path(key, rawURL string) (string, error) {
	name := key
	if name == "" {
		digest, err := s.hasher.Hash([]byte(rawURL))
		if err != nil {
			return "", fmt.Errorf("hash url: %w", err)
		}
		name = digest
	}
	return path.Join(s.prefix, name+".ndjson"), nil
}

// Save writes one line per document and returns the blob URI. Empty results are not written.
func (s *Store) Save(ctx context.Context, key string, res crawler.CrawlResult) (string, error) {
	if res.Empty() {
		return "", nil
	}
	p, err := s.Path(key, res.BaseURL)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, res.Documents); err != nil {
		return "", err
	}
	uri, err := s.blobs.PutObject(ctx, p, contentType, &buf)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", p, err)
	}
	return uri, nil
}

// Load returns the cached documents. found is false when nothing was cached.
func (s *Store) Load(ctx context.Context, key, rawURL string) (docs []*document.Document, found bool, err error) {
	p, err := s.Path(key, rawURL)
	if err != nil {
		return nil, false, err
	}
	data, err := s.blobs.GetObject(ctx, p)
	if errors.Is(err, crawler.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", p, err)
	}
	docs, err = Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", p, err)
	}
	return docs, true, nil
}

// Encode writes docs as NDJSON, skipping nil entries.
func Encode(w io.Writer, docs []*document.Document) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, d := range docs {
		if d == nil {
			continue
		}
		l := line{HTML: d.HTML(), BaseURI: d.BaseURI(), Charset: d.Charset(), EscapeMode: escapeMode}
		if err := enc.Encode(l); err != nil {
			return fmt.Errorf("encode %s: %w", d.BaseURI(), err)
		}
	}
	return nil
}

// Decode reads NDJSON documents written by Encode.
func Decode(r io.Reader) ([]*document.Document, error) {
	dec := json.NewDecoder(r)
	var docs []*document.Document
	for {
		var l line
		err := dec.Decode(&l)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", len(docs)+1, err)
		}
		d, err := document.Restore(l.BaseURI, l.HTML, l.Charset)
		if err != nil {
			return nil, fmt.Errorf("restore %s: %w", l.BaseURI, err)
		}
		docs = append(docs, d)
	}
}
