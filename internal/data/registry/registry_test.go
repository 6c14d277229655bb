package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "registry.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, path
}

func TestRegister_IsIdempotent(t *testing.T) {
	r, _ := openTemp(t)

	doc, created, err := r.Register(docModel.Document{Id: "abc", Name: "a.pdf", Origin: docModel.OriginUpload, Size: 10})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, docModel.StatusPending, doc.Status)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = r.MarkReady("abc", 4)
	require.NoError(t, err)

	again, created, err := r.Register(docModel.Document{Id: "abc", Name: "renamed.pdf"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a.pdf", again.Name)
	assert.Equal(t, docModel.StatusReady, again.Status)
	assert.Equal(t, 4, again.Pages)
}

func TestStatusTransitions(t *testing.T) {
	r, _ := openTemp(t)
	_, _, err := r.Register(docModel.Document{Id: "doc"})
	require.NoError(t, err)

	failed, err := r.MarkFailed("doc", errors.New("no text"))
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusFailed, failed.Status)
	assert.Equal(t, "no text", failed.Error)

	reset, err := r.Reset("doc")
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusPending, reset.Status)
	assert.Empty(t, reset.Error)

	_, err = r.MarkReady("missing", 1)
	assert.ErrorIs(t, err, errorModel.ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	r, path := openTemp(t)
	_, _, err := r.Register(docModel.Document{Id: "one", Name: "one.pdf"})
	require.NoError(t, err)
	_, _, err = r.Register(docModel.Document{Id: "two", Name: "two.pdf"})
	require.NoError(t, err)
	require.NoError(t, r.Delete("two"))
	require.NoError(t, r.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	docs, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "one.pdf", docs[0].Name)

	_, err = reopened.Get("two")
	assert.ErrorIs(t, err, errorModel.ErrNotFound)
}
