// Package lexicon names the node types, property names and namespace
// prefixes that the sequencer core inspects.
//
// The names follow the repository's "prefix:local" convention. A type's
// namespace is the prefix before the colon; derived content is scoped for
// cleanup by that prefix.
package lexicon

import "strings"

// Repository-level names.
const (
	Content      = "jcr:content"
	Data         = "jcr:data"
	System       = "jcr:system"
	Resource     = "nt:resource"
	Unstructured = "nt:unstructured"

	// SystemPath is the root of repository-internal housekeeping content.
	SystemPath = "/" + System
)

// Namespace prefixes owned by derivation kinds.
const (
	VdbNamespace      = "vdb"
	DdlNamespace      = "teiidddl"
	EmbeddedNamespace = "tsql"
)

// VDB archive and model types.
const (
	VirtualDatabase  = "vdb:virtualDatabase"
	DeclarativeModel = "vdb:declarativeModel"
	ModelDefinition  = "vdb:modelDefinition"
	Version          = "vdb:version"
	Description      = "vdb:description"
	ModelType        = "vdb:modelType"
)

// Schema objects stored by the workspace.
const (
	Schema    = "tko:schema"
	Rendition = "tko:rendition"
)

// Teiid DDL statement types and properties.
const (
	CreateTable       = "teiidddl:createTable"
	CreateView        = "teiidddl:createView"
	CreateProcedure   = "teiidddl:createProcedure"
	UnparsedStatement = "teiidddl:unparsedStatement"
	QueryExpression   = "teiidddl:queryExpression"
	Statement         = "teiidddl:statement"
	Columns           = "teiidddl:columns"
)

// Standard DDL markers left behind by the statement parser.
const (
	UnknownStatement = "ddl:unknownStatement"
	Problem          = "ddl:ddlProblem"
	Expression       = "ddl:expression"
	ProblemLevel     = "ddl:problemLevel"
	Message          = "ddl:message"
)

// Data virtualization objects.
const (
	Connection  = "dv:connection"
	DataService = "dv:dataService"
	Type        = "dv:type"
	JndiName    = "dv:jndiName"
	DriverName  = "dv:driverName"
)

// Embedded expression types produced from T-SQL, connection and data
// service content.
const (
	Query           = "tsql:query"
	Command         = "tsql:command"
	QueryText       = "tsql:expression"
	VdbEntry        = "tsql:vdbEntry"
	ConnectionEntry = "tsql:connectionEntry"
	EntryName       = "tsql:name"
)

// Namespace returns the prefix of a qualified name, or "" when the name is
// unqualified.
func Namespace(name string) string {
	prefix, _, ok := strings.Cut(name, ":")
	if !ok {
		return ""
	}
	return prefix
}

// InNamespace reports whether name is qualified with prefix.
func InNamespace(name, prefix string) bool {
	return prefix != "" && Namespace(name) == prefix
}
