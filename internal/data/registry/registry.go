package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	bolt "go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// Registry persists document metadata across restarts. Rows are json encoded docModel.Document keyed by id.
type Registry struct {
	db  *bolt.DB
	now func() time.Time
}

func Open(path string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for registry: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Registry{db: db, now: time.Now}, nil
}

// Register inserts doc as pending. An existing row is returned untouched so re-uploading the same bytes
// keeps the original status and creation time.
func (r *Registry) Register(doc docModel.Document) (docModel.Document, bool, error) {
	var stored docModel.Document
	created := false
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		if raw := b.Get([]byte(doc.Id)); raw != nil {
			return json.Unmarshal(raw, &stored)
		}
		now := r.now().UTC()
		doc.Status = docModel.StatusPending
		doc.CreatedAt = now
		doc.UpdatedAt = now
		created = true
		stored = doc
		return put(b, doc)
	})
	return stored, created, err
}

func (r *Registry) Get(id string) (docModel.Document, error) {
	var doc docModel.Document
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(documentsBucket).Get([]byte(id))
		if raw == nil {
			return errorModel.New(errorModel.NotFound, "registry.get", fmt.Errorf("document %s", id))
		}
		return json.Unmarshal(raw, &doc)
	})
	return doc, err
}

// MarkReady records a successful extraction.
func (r *Registry) MarkReady(id string, pages int) (docModel.Document, error) {
	return r.update(id, func(doc *docModel.Document) {
		doc.Status = docModel.StatusReady
		doc.Pages = pages
		doc.Error = ""
	})
}

func (r *Registry) MarkFailed(id string, cause error) (docModel.Document, error) {
	return r.update(id, func(doc *docModel.Document) {
		doc.Status = docModel.StatusFailed
		if cause != nil {
			doc.Error = cause.Error()
		}
	})
}

// Reset puts a failed document back to pending for another warm-up attempt.
func (r *Registry) Reset(id string) (docModel.Document, error) {
	return r.update(id, func(doc *docModel.Document) {
		doc.Status = docModel.StatusPending
		doc.Error = ""
	})
}

func (r *Registry) Delete(id string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Delete([]byte(id))
	})
}

func (r *Registry) List() ([]docModel.Document, error) {
	var docs []docModel.Document
	err := r.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).ForEach(func(_, raw []byte) error {
			var doc docModel.Document
			if err := json.Unmarshal(raw, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) update(id string, mutate func(*docModel.Document)) (docModel.Document, error) {
	var doc docModel.Document
	err := r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		raw := b.Get([]byte(id))
		if raw == nil {
			return errorModel.New(errorModel.NotFound, "registry.update", fmt.Errorf("document %s", id))
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		mutate(&doc)
		doc.UpdatedAt = r.now().UTC()
		return put(b, doc)
	})
	return doc, err
}

func put(b *bolt.Bucket, doc docModel.Document) error {
	if doc.Id == "" {
		return errors.New("document without id")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return b.Put([]byte(doc.Id), raw)
}
