package derive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
	"github.com/roach88/sequencer/internal/repo/memrepo"
	"github.com/roach88/sequencer/internal/sequencer"
)

// fixture builds an output node holding a source property in a fresh
// in-memory repository.
func fixture(t *testing.T, outputType, property, value string) (repo.Property, repo.Node) {
	t.Helper()
	ctx := context.Background()

	r := memrepo.New()
	s, err := r.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	root, err := s.Node(repo.Root)
	require.NoError(t, err)
	out, err := root.AddChild("out", outputType)
	require.NoError(t, err)
	require.NoError(t, out.SetProperty(property, value))

	p, err := out.Property(property)
	require.NoError(t, err)
	return p, out
}

func childTypes(t *testing.T, n repo.Node) map[string]string {
	t.Helper()
	children, err := n.Children()
	require.NoError(t, err)
	types := make(map[string]string, len(children))
	for _, c := range children {
		types[c.Name()] = c.PrimaryType()
	}
	return types
}

func value(t *testing.T, n repo.Node, name string) string {
	t.Helper()
	p, err := n.Property(name)
	require.NoError(t, err)
	v, err := p.Value()
	require.NoError(t, err)
	return v
}

func TestDerive_Vdb(t *testing.T) {
	manifest := `
name: portfolio
version: 3
description: Accounts and holdings
models:
  - name: accounts
    type: physical
    ddl: CREATE FOREIGN TABLE account (id integer)
  - name: empty
`
	src, out := fixture(t, lexicon.Unstructured, lexicon.Data, manifest)

	ok, err := New().Derive(context.Background(), sequencer.KindVdb, src, out)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "3", value(t, out, lexicon.Version))
	assert.Equal(t, "Accounts and holdings", value(t, out, lexicon.Description))
	assert.Equal(t, map[string]string{
		"accounts": lexicon.DeclarativeModel,
		"empty":    lexicon.DeclarativeModel,
	}, childTypes(t, out))

	children, err := out.Children()
	require.NoError(t, err)
	assert.Equal(t, "PHYSICAL", value(t, children[0], lexicon.ModelType))
	assert.Equal(t, "CREATE FOREIGN TABLE account (id integer)", value(t, children[0], lexicon.ModelDefinition))

	has, err := children[1].HasProperty(lexicon.ModelDefinition)
	require.NoError(t, err)
	assert.False(t, has, "models without DDL carry no definition")
}

func TestDerive_VdbRejectsBadManifests(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"unknown field", "version: 1\nowner: me\n"},
		{"missing version", "name: x\n"},
		{"duplicate model", "version: 1\nmodels:\n  - name: a\n  - name: a\n"},
		{"illegal model name", "version: 1\nmodels:\n  - name: a/b\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, out := fixture(t, lexicon.Unstructured, lexicon.Data, tt.manifest)
			ok, err := New().Derive(context.Background(), sequencer.KindVdb, src, out)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestDerive_Ddl(t *testing.T) {
	ddl := `
CREATE FOREIGN TABLE account (id integer, name string) OPTIONS (UPDATABLE true);
CREATE VIEW summary (id integer) AS SELECT id FROM account;
CREATE VIRTUAL PROCEDURE refresh() AS SELECT 1;
`
	src, out := fixture(t, lexicon.DeclarativeModel, lexicon.ModelDefinition, ddl)

	ok, err := New().Derive(context.Background(), sequencer.KindDdl, src, out)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, map[string]string{
		"account": lexicon.CreateTable,
		"summary": lexicon.CreateView,
		"refresh": lexicon.CreateProcedure,
	}, childTypes(t, out))

	children, err := out.Children()
	require.NoError(t, err)
	assert.Equal(t, "id integer, name string", value(t, children[0], lexicon.Columns))
	assert.Equal(t, "SELECT id FROM account", value(t, children[1], lexicon.QueryExpression))
	assert.Equal(t, "SELECT 1", value(t, children[2], lexicon.Statement))
}

func TestDerive_DdlMarksUnknownStatements(t *testing.T) {
	src, out := fixture(t, lexicon.DeclarativeModel, lexicon.ModelDefinition, "CREATE TABLE ok (a integer); DROP TABLE foo")

	ok, err := New().Derive(context.Background(), sequencer.KindDdl, src, out)
	require.NoError(t, err)
	assert.True(t, ok)

	children, err := out.Children()
	require.NoError(t, err)
	require.Len(t, children, 2)

	unknown := children[1]
	assert.Equal(t, "teiidddl:unparsed2", unknown.Name())
	names, err := unknown.TypeNames()
	require.NoError(t, err)
	assert.Contains(t, names, lexicon.UnknownStatement)
	assert.Equal(t, "DROP TABLE foo", value(t, unknown, lexicon.Expression))
}

func TestDerive_DdlMarksProblems(t *testing.T) {
	tests := []struct {
		name    string
		ddl     string
		message string
	}{
		{"unbalanced parentheses", "CREATE TABLE t (a integer", "unbalanced parentheses: 1 opening, 0 closing"},
		{"table without columns", "CREATE TABLE t", "table t declares no columns"},
		{"view without body", "CREATE VIEW v (a integer)", "view v has no AS clause"},
		{"duplicate name", "CREATE TABLE t (a integer); CREATE TABLE t (b integer)", "duplicate object name t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, out := fixture(t, lexicon.DeclarativeModel, lexicon.ModelDefinition, tt.ddl)
			ok, err := New().Derive(context.Background(), sequencer.KindDdl, src, out)
			require.NoError(t, err)
			assert.True(t, ok)

			children, err := out.Children()
			require.NoError(t, err)
			problem := children[len(children)-1]
			has, err := repo.HasType(problem, lexicon.Problem)
			require.NoError(t, err)
			assert.True(t, has)
			assert.Equal(t, LevelError, value(t, problem, lexicon.ProblemLevel))
			assert.Equal(t, tt.message, value(t, problem, lexicon.Message))
		})
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE VIEW v AS SELECT ';' FROM t;;\n  ;CREATE TABLE x (a integer, b string);")
	assert.Equal(t, []string{
		"CREATE VIEW v AS SELECT ';' FROM t",
		"CREATE TABLE x (a integer, b string)",
	}, got)
}

func TestDerive_Tsql(t *testing.T) {
	tests := []struct {
		body     string
		wantName string
		wantType string
	}{
		{"SELECT * FROM account", "tsql:query", lexicon.Query},
		{"with x as (select 1) select * from x", "tsql:query", lexicon.Query},
		{"(SELECT 1) UNION (SELECT 2)", "tsql:query", lexicon.Query},
		{"INSERT INTO account VALUES (1)", "tsql:command", lexicon.Command},
		{"SELECTION_PROC()", "tsql:command", lexicon.Command},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			src, out := fixture(t, lexicon.CreateView, lexicon.QueryExpression, tt.body)
			ok, err := New().Derive(context.Background(), sequencer.KindTsql, src, out)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, map[string]string{tt.wantName: tt.wantType}, childTypes(t, out))
		})
	}
}

func TestDerive_TsqlFailures(t *testing.T) {
	src, out := fixture(t, lexicon.CreateView, lexicon.QueryExpression, "   ")
	ok, err := New().Derive(context.Background(), sequencer.KindTsql, src, out)
	require.NoError(t, err)
	assert.False(t, ok, "blank bodies are not derivable")

	src, out = fixture(t, lexicon.CreateView, lexicon.QueryExpression, "SELECT (1")
	_, err = New().Derive(context.Background(), sequencer.KindTsql, src, out)
	assert.ErrorContains(t, err, "unbalanced parentheses")
}

func TestDerive_Connection(t *testing.T) {
	src, out := fixture(t, lexicon.Unstructured, lexicon.Data, "type: postgresql\njndiName: java:/pg\n")

	ok, err := New().Derive(context.Background(), sequencer.KindConnection, src, out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "postgresql", value(t, out, lexicon.Type))
	assert.Equal(t, "java:/pg", value(t, out, lexicon.JndiName))

	has, err := out.HasProperty(lexicon.DriverName)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDerive_ConnectionWithoutType(t *testing.T) {
	src, out := fixture(t, lexicon.Unstructured, lexicon.Data, "jndiName: java:/pg\n")

	ok, err := New().Derive(context.Background(), sequencer.KindConnection, src, out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDerive_DataService(t *testing.T) {
	src, out := fixture(t, lexicon.Unstructured, lexicon.Data, "vdbs: [portfolio]\nconnections: [pg, mysql]\n")

	ok, err := New().Derive(context.Background(), sequencer.KindDataService, src, out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]string{
		"tsql:vdb-portfolio":    lexicon.VdbEntry,
		"tsql:connection-pg":    lexicon.ConnectionEntry,
		"tsql:connection-mysql": lexicon.ConnectionEntry,
	}, childTypes(t, out))
}

func TestDerive_UnknownKind(t *testing.T) {
	src, out := fixture(t, lexicon.Unstructured, lexicon.Data, "x")

	_, err := New().Derive(context.Background(), sequencer.Kind(99), src, out)
	assert.ErrorContains(t, err, "no handler")
}

func TestDerive_CancelledContext(t *testing.T) {
	src, out := fixture(t, lexicon.Unstructured, lexicon.Data, "type: x\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Derive(ctx, sequencer.KindConnection, src, out)
	assert.ErrorIs(t, err, context.Canceled)
}
