// Package derive is a small reference derivation engine.
//
// It understands just enough of each content format to exercise the
// coordinator end to end:
//
//   - Vdb: a YAML manifest stored on a VDB's content node. Produces the
//     version, description and one declarative model per entry. Models
//     carrying DDL chain into Ddl runs.
//   - Ddl: semicolon separated CREATE statements. Tables, views and
//     procedures become statement nodes; anything else becomes an
//     unparsed statement marked unknown or problematic. Views and
//     procedures chain into Tsql runs.
//   - Tsql: a query or command body, stored as a single expression node.
//   - Connection and DataService: YAML descriptors.
//
// The engine never commits. It writes through the handles it is given and
// leaves the session to the caller.
package derive
