package derive

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sequencer/internal/lexicon"
	"github.com/roach88/sequencer/internal/repo"
)

// queryKeywords start statements stored as tsql:query. Anything else is a
// tsql:command.
var queryKeywords = []string{"SELECT", "WITH", "VALUES", "("}

func (e *Engine) deriveTsql(_ context.Context, text string, output repo.Node) (bool, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return false, nil
	}
	if opened, closed := parenBalance(body); opened != closed {
		return false, fmt.Errorf("unbalanced parentheses: %d opening, %d closing", opened, closed)
	}

	name, typeName := "command", lexicon.Command
	if isQuery(body) {
		name, typeName = "query", lexicon.Query
	}

	n, err := output.AddChild(lexicon.EmbeddedNamespace+":"+name, typeName)
	if err != nil {
		return false, err
	}
	if err := n.SetProperty(lexicon.QueryText, body); err != nil {
		return false, err
	}
	return true, nil
}

func isQuery(body string) bool {
	upper := strings.ToUpper(body)
	for _, kw := range queryKeywords {
		if !strings.HasPrefix(upper, kw) {
			continue
		}
		if kw == "(" || len(upper) == len(kw) || strings.ContainsAny(upper[len(kw):len(kw)+1], " \t\r\n(") {
			return true
		}
	}
	return false
}
