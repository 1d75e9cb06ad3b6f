package memrepo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// collector records every delivered batch.
type collector struct {
	batches [][]repo.ChangeRecord
}

func (c *collector) fn(records []repo.ChangeRecord) {
	c.batches = append(c.batches, records)
}

func newSubscribed(t *testing.T) (*Repository, *collector) {
	t.Helper()
	r := New()
	c := &collector{}
	_, err := r.Subscribe(nil, c.fn)
	require.NoError(t, err)
	return r, c
}

func TestCommit_EmitsRecordsWithToken(t *testing.T) {
	ctx := context.Background()
	r, c := newSubscribed(t)

	s, err := r.Open(ctx)
	require.NoError(t, err)
	s.Tag("tok-1")

	root, err := s.Node("/")
	require.NoError(t, err)
	ws, err := root.AddChild("workspace", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, ws.SetProperty("title", "demo"))
	assert.True(t, s.HasPendingChanges())

	require.NoError(t, s.Commit(ctx))
	assert.False(t, s.HasPendingChanges())

	require.Len(t, c.batches, 1)
	assert.Equal(t, []repo.ChangeRecord{
		{Path: "/workspace", Kind: repo.NodeAdded, Token: "tok-1"},
		{Path: "/workspace/title", Kind: repo.PropertyAdded, Token: "tok-1"},
	}, c.batches[0])
}

func TestCommit_PropertyChangedOnlyWhenValueDiffers(t *testing.T) {
	ctx := context.Background()
	r, c := newSubscribed(t)

	s, _ := r.Open(ctx)
	root, _ := s.Node("/")
	n, err := root.AddChild("a", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, n.SetProperty("p", "1"))
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, n.SetProperty("p", "1"))
	assert.False(t, s.HasPendingChanges(), "rewriting the same value is not a change")
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, n.SetProperty("p", "2"))
	require.NoError(t, s.Commit(ctx))

	require.Len(t, c.batches, 2)
	assert.Equal(t, repo.PropertyChanged, c.batches[1][0].Kind)
	assert.Equal(t, "/a/p", c.batches[1][0].Path)
}

func TestCommit_ConflictAppliesNothing(t *testing.T) {
	ctx := context.Background()
	r, c := newSubscribed(t)

	setup, _ := r.Open(ctx)
	root, _ := setup.Node("/")
	_, err := root.AddChild("model", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, setup.Commit(ctx))

	writer, _ := r.Open(ctx)
	wroot, _ := writer.Node("/")
	_, err = wroot.AddChild("output", lexicon.Unstructured)
	require.NoError(t, err)
	model, err := writer.Node("/model")
	require.NoError(t, err)
	require.NoError(t, model.SetProperty("derived", "true"))

	other, _ := r.Open(ctx)
	gone, err := other.Node("/model")
	require.NoError(t, err)
	require.NoError(t, gone.Remove())
	require.NoError(t, other.Commit(ctx))
	batches := len(c.batches)

	err = writer.Commit(ctx)
	require.ErrorIs(t, err, repo.ErrConflict)
	assert.True(t, writer.HasPendingChanges(), "a rejected commit keeps its changes")
	assert.Len(t, c.batches, batches, "a rejected commit delivers nothing")

	fresh, _ := r.Open(ctx)
	ok, err := fresh.NodeExists("/output")
	require.NoError(t, err)
	assert.False(t, ok, "changes made before the conflicting op are rolled back")
}

func TestCommit_ConcurrentIdenticalSetIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	r, c := newSubscribed(t)

	setup, _ := r.Open(ctx)
	root, _ := setup.Node("/")
	_, err := root.AddChild("n", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, setup.Commit(ctx))

	a, _ := r.Open(ctx)
	b, _ := r.Open(ctx)
	na, _ := a.Node("/n")
	nb, _ := b.Node("/n")
	require.NoError(t, na.SetProperty("k", "v"))
	require.NoError(t, nb.SetProperty("k", "v"))
	require.NoError(t, a.Commit(ctx))
	require.NoError(t, b.Commit(ctx))

	require.Len(t, c.batches, 2, "the second identical write changes nothing")
	assert.Equal(t, repo.PropertyAdded, c.batches[1][0].Kind)
}

func TestSubscribe_ExcludesOwnerCommits(t *testing.T) {
	ctx := context.Background()
	r := New()

	owner, _ := r.Open(ctx)
	c := &collector{}
	_, err := r.Subscribe(owner, c.fn)
	require.NoError(t, err)

	root, _ := owner.Node("/")
	_, err = root.AddChild("mine", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, owner.Commit(ctx))
	assert.Empty(t, c.batches)

	other, _ := r.Open(ctx)
	root, _ = other.Node("/")
	_, err = root.AddChild("theirs", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, other.Commit(ctx))
	assert.Len(t, c.batches, 1)
}

func TestSubscription_Cancel(t *testing.T) {
	ctx := context.Background()
	r := New()
	c := &collector{}
	sub, err := r.Subscribe(nil, c.fn)
	require.NoError(t, err)
	sub.Cancel()

	require.NoError(t, r.RegisterNamespace(ctx, "vdb", "http://www.metamatrix.com/metamodels/VirtualDatabase"))
	assert.Empty(t, c.batches)
}

func TestSession_ReadsCommittedUntilFirstWrite(t *testing.T) {
	ctx := context.Background()
	r := New()

	reader, _ := r.Open(ctx)
	writer, _ := r.Open(ctx)

	root, _ := writer.Node("/")
	_, err := root.AddChild("x", lexicon.Unstructured)
	require.NoError(t, err)

	exists, err := reader.NodeExists("/x")
	require.NoError(t, err)
	assert.False(t, exists, "pending changes are private")

	require.NoError(t, writer.Commit(ctx))
	exists, err = reader.NodeExists("/x")
	require.NoError(t, err)
	assert.True(t, exists, "committed changes are visible")
}

func TestNode_TypeNamesIncludeMixinsAndSupertypes(t *testing.T) {
	ctx := context.Background()
	r := New()
	r.DefineType(lexicon.DeclarativeModel, "vdb:model")
	r.DefineType("vdb:model", "nt:base")

	s, _ := r.Open(ctx)
	root, _ := s.Node("/")
	n, err := root.AddChild("m", lexicon.DeclarativeModel, "mix:referenceable")
	require.NoError(t, err)

	names, err := n.TypeNames()
	require.NoError(t, err)
	assert.Equal(t, []string{lexicon.DeclarativeModel, "vdb:model", "nt:base", "mix:referenceable"}, names)

	ok, err := repo.HasType(n, "nt:base")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSession_MoveAndRemove(t *testing.T) {
	ctx := context.Background()
	r, c := newSubscribed(t)

	s, _ := r.OpenSession(ctx)
	root, _ := s.Node("/")
	a, _ := root.AddChild("a", lexicon.Unstructured)
	_, err := a.AddChild("b", lexicon.Unstructured)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	require.NoError(t, s.Move("/a/b", "/b"))
	require.NoError(t, s.Commit(ctx))

	b, err := s.Node("/b")
	require.NoError(t, err)
	require.NoError(t, b.Remove())
	require.NoError(t, s.Commit(ctx))

	require.Len(t, c.batches, 3)
	assert.Equal(t, repo.ChangeRecord{Path: "/b", Kind: repo.NodeMoved}, c.batches[1][0])
	assert.Equal(t, repo.ChangeRecord{Path: "/b", Kind: repo.NodeRemoved}, c.batches[2][0])
}

func TestSession_AddChildRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	s, _ := New().Open(ctx)
	root, _ := s.Node("/")
	_, err := root.AddChild("dup", lexicon.Unstructured)
	require.NoError(t, err)

	_, err = root.AddChild("dup", lexicon.Unstructured)
	assert.ErrorIs(t, err, repo.ErrExists)
}

func TestSession_ClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := New().Open(ctx)
	require.NoError(t, s.Close())

	assert.False(t, s.IsLive())
	_, err := s.Node("/")
	assert.ErrorIs(t, err, repo.ErrSessionClosed)
	assert.ErrorIs(t, s.Commit(ctx), repo.ErrSessionClosed)
}

func TestProperty_ValueAndParent(t *testing.T) {
	ctx := context.Background()
	s, _ := New().Open(ctx)
	root, _ := s.Node("/")
	n, _ := root.AddChild("n", lexicon.Unstructured)
	require.NoError(t, n.SetProperty("k", "v"))

	p, err := s.Property("/n/k")
	require.NoError(t, err)
	assert.Equal(t, "k", p.Name())
	assert.Equal(t, "/n/k", p.Path())

	v, err := p.Value()
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	parent, err := p.Parent()
	require.NoError(t, err)
	assert.Equal(t, "/n", parent.Path())

	_, err = s.Property("/n/missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRegisterNamespace_WritesOnlySystemPaths(t *testing.T) {
	ctx := context.Background()
	r, c := newSubscribed(t)

	require.NoError(t, r.RegisterNamespace(ctx, "tko", "http://www.teiid.org/komodo/1.0"))

	require.Len(t, c.batches, 1)
	for _, rec := range c.batches[0] {
		assert.True(t, repo.IsBelow(rec.Path, lexicon.SystemPath), rec.Path)
		assert.Empty(t, rec.Token)
	}
}
