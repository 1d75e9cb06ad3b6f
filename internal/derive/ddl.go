package derive

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// Problem levels written to ddl:problemLevel.
const (
	LevelError   = "ERROR"
	LevelWarning = "WARNING"
)

// statementKind is what the parser made of one DDL statement.
type statementKind int

const (
	stmtUnknown statementKind = iota
	stmtProblem
	stmtTable
	stmtView
	stmtProcedure
)

// statement is one parsed DDL statement.
type statement struct {
	kind statementKind
	raw  string
	name string

	// columns is the text between the definition's outer parentheses.
	columns string

	// body is the query or procedure text following AS.
	body string

	// problem describes a stmtProblem.
	problem string
}

// splitStatements splits DDL on semicolons outside quotes and parentheses.
// Blank statements are dropped.
func splitStatements(ddl string) []string {
	var out []string
	var b strings.Builder
	depth := 0
	var quote rune

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for _, r := range ddl {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
		case r == ';' && depth <= 0:
			flush()
			depth = 0
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}

// parseStatement recognises the CREATE forms the engine derives.
func parseStatement(raw string) statement {
	st := statement{kind: stmtUnknown, raw: raw}

	if opened, closed := parenBalance(raw); opened != closed {
		st.kind = stmtProblem
		st.problem = fmt.Sprintf("unbalanced parentheses: %d opening, %d closing", opened, closed)
		return st
	}

	fields := strings.Fields(raw)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "CREATE") {
		return st
	}

	i := 1
	if strings.EqualFold(fields[i], "FOREIGN") || strings.EqualFold(fields[i], "VIRTUAL") {
		i++
	}
	if i+1 >= len(fields) {
		return st
	}

	var kind statementKind
	switch strings.ToUpper(fields[i]) {
	case "TABLE":
		kind = stmtTable
	case "VIEW":
		kind = stmtView
	case "PROCEDURE":
		kind = stmtProcedure
	default:
		return st
	}

	// The name runs up to the first parenthesis or space
	rest := strings.TrimSpace(afterFields(raw, i+1))
	end := strings.IndexAny(rest, " \t\r\n(")
	if end < 0 {
		end = len(rest)
	}
	name := unquote(rest[:end])
	if err := validName(name); err != nil {
		st.kind = stmtProblem
		st.problem = err.Error()
		return st
	}
	rest = strings.TrimSpace(rest[end:])

	if strings.HasPrefix(rest, "(") {
		closeAt := matchingParen(rest)
		st.columns = strings.TrimSpace(rest[1:closeAt])
		rest = strings.TrimSpace(rest[closeAt+1:])
	}

	if body, ok := cutKeyword(rest, "AS"); ok {
		st.body = body
	} else if rest != "" && !strings.HasPrefix(strings.ToUpper(rest), "OPTIONS") {
		return st
	}

	switch {
	case kind == stmtTable && st.columns == "" && st.body == "":
		st.kind = stmtProblem
		st.problem = fmt.Sprintf("table %s declares no columns", name)
		return st
	case (kind == stmtView || kind == stmtProcedure) && st.body == "":
		st.kind = stmtProblem
		st.problem = fmt.Sprintf("%s %s has no AS clause", strings.ToLower(fields[i]), name)
		return st
	}

	st.kind = kind
	st.name = name
	return st
}

func (e *Engine) deriveDdl(_ context.Context, text string, output repo.Node) (bool, error) {
	statements := splitStatements(text)
	seen := make(map[string]bool, len(statements))

	for i, raw := range statements {
		st := parseStatement(raw)
		if st.name != "" && seen[st.name] {
			st.kind = stmtProblem
			st.problem = fmt.Sprintf("duplicate object name %s", st.name)
		}

		var err error
		switch st.kind {
		case stmtTable:
			err = addStatement(output, st, lexicon.CreateTable, lexicon.QueryExpression)
		case stmtView:
			err = addStatement(output, st, lexicon.CreateView, lexicon.QueryExpression)
		case stmtProcedure:
			err = addStatement(output, st, lexicon.CreateProcedure, lexicon.Statement)
		case stmtProblem:
			err = addProblem(output, i, st)
		default:
			err = addUnknown(output, i, st)
		}
		if err != nil {
			return false, fmt.Errorf("statement %d: %w", i+1, err)
		}
		if st.name != "" && st.kind != stmtProblem {
			seen[st.name] = true
		}
	}

	e.logger.Debug("ddl derived", "output", output.Path(), "statements", len(statements))
	return true, nil
}

func addStatement(output repo.Node, st statement, typeName, bodyProperty string) error {
	n, err := output.AddChild(st.name, typeName)
	if err != nil {
		return err
	}
	if err := n.SetProperty(lexicon.Expression, st.raw); err != nil {
		return err
	}
	if st.columns != "" {
		if err := n.SetProperty(lexicon.Columns, st.columns); err != nil {
			return err
		}
	}
	if st.body != "" {
		return n.SetProperty(bodyProperty, st.body)
	}
	return nil
}

func addUnknown(output repo.Node, index int, st statement) error {
	n, err := output.AddChild(unparsedName(index), lexicon.UnparsedStatement, lexicon.UnknownStatement)
	if err != nil {
		return err
	}
	return n.SetProperty(lexicon.Expression, st.raw)
}

func addProblem(output repo.Node, index int, st statement) error {
	n, err := output.AddChild(unparsedName(index), lexicon.UnparsedStatement, lexicon.Problem)
	if err != nil {
		return err
	}
	if err := n.SetProperty(lexicon.Expression, st.raw); err != nil {
		return err
	}
	if err := n.SetProperty(lexicon.ProblemLevel, LevelError); err != nil {
		return err
	}
	return n.SetProperty(lexicon.Message, st.problem)
}

func unparsedName(index int) string {
	return fmt.Sprintf("teiidddl:unparsed%d", index+1)
}

func parenBalance(s string) (opened, closed int) {
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			opened++
		case r == ')':
			closed++
		}
	}
	return opened, closed
}

// matchingParen returns the index of the parenthesis closing s[0]. The
// caller guarantees the parentheses are balanced.
func matchingParen(s string) int {
	depth := 0
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(s) - 1
}

// afterFields returns s with its first n whitespace separated fields
// removed.
func afterFields(s string, n int) string {
	for ; n > 0; n-- {
		s = strings.TrimLeft(s, " \t\r\n")
		end := strings.IndexAny(s, " \t\r\n")
		if end < 0 {
			return ""
		}
		s = s[end:]
	}
	return s
}

// cutKeyword returns the text following a leading keyword, matched case
// insensitively and as a whole word.
func cutKeyword(s, keyword string) (string, bool) {
	if len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return "", false
	}
	rest := s[len(keyword):]
	if rest != "" && !strings.ContainsAny(rest[:1], " \t\r\n") {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func unquote(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return name[1 : len(name)-1]
	}
	return name
}
