package sequencer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/repo/memrepo"
	"github.com/roach88/sequencer/internal/testutil"
)

func newRepo() *memrepo.Repository {
	return memrepo.New(memrepo.WithIDGenerator(testutil.NewSequence("session").Next))
}

// commit applies fn to the root in a fresh session and commits it.
func commit(t *testing.T, r repo.Repository, fn func(root repo.Node)) {
	t.Helper()
	ctx := context.Background()
	s, err := r.Open(ctx)
	require.NoError(t, err)
	defer s.Close()

	root, err := s.Node(repo.Root)
	require.NoError(t, err)
	fn(root)
	require.NoError(t, s.Commit(ctx))
}

// node reads path through a fresh session.
func node(t *testing.T, r repo.Repository, path string) repo.Node {
	t.Helper()
	s, err := r.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	n, err := s.Node(path)
	require.NoError(t, err)
	return n
}

func mustAdd(t *testing.T, parent repo.Node, name, primary string, mixins ...string) repo.Node {
	t.Helper()
	n, err := parent.AddChild(name, primary, mixins...)
	require.NoError(t, err)
	return n
}

func mustSet(t *testing.T, n repo.Node, name, value string) {
	t.Helper()
	require.NoError(t, n.SetProperty(name, value))
}

func childNames(t *testing.T, n repo.Node) []string {
	t.Helper()
	children, err := n.Children()
	require.NoError(t, err)
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name())
	}
	return names
}
