package mel

import (
	"fmt"
	"strings"

	"github.com/eldakms/CNTK/engine"
	"github.com/eldakms/CNTK/network"
)

// resolveModel splits a node reference into its model binding and the node
// pattern within it. A prefix before the first dot that names a registered
// model selects that model; otherwise the whole reference resolves against
// the default model, since node names themselves may contain dots.
func (i *Interpreter) resolveModel(symbol string) (*engine.Binding, string, error) {
	if dot := strings.IndexByte(symbol, '.'); dot > 0 {
		if b := i.Model(symbol[:dot]); b != nil {
			return b, symbol[dot+1:], nil
		}
	}
	b, err := i.DefaultModel()
	if err != nil {
		return nil, "", err
	}
	return b, symbol, nil
}

// findSymbols resolves a node reference, which may carry a model prefix and
// a single '*' wildcard, to the binding and the matching nodes. At least
// one node must match.
func (i *Interpreter) findSymbols(symbol string) (*engine.Binding, []*network.Node, error) {
	b, pattern, err := i.resolveModel(symbol)
	if err != nil {
		return nil, nil, err
	}
	nodes := b.Net.NodesMatching(pattern)
	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("%w: %q", network.ErrNodeNotFound, symbol)
	}
	return b, nodes, nil
}

// wildcardName maps a matched source name onto a destination pattern: the
// text the source '*' matched replaces the destination '*'. Patterns
// without a wildcard pass through unchanged.
func wildcardName(fromPattern, fromName, toPattern string) string {
	toStar := strings.IndexByte(toPattern, '*')
	if toStar < 0 {
		return toPattern
	}
	fromStar := strings.IndexByte(fromPattern, '*')
	middle := ""
	if fromStar >= 0 {
		suffix := len(fromPattern) - fromStar - 1
		middle = fromName[fromStar : len(fromName)-suffix]
	}
	return toPattern[:toStar] + middle + toPattern[toStar+1:]
}

// splitOptional separates trailing name=value parameters from the fixed
// ones.
func splitOptional(params []string) (fixed []string, optional map[string]string) {
	optional = map[string]string{}
	for _, p := range params {
		if eq := strings.IndexByte(p, '='); eq > 0 {
			name := strings.TrimSpace(p[:eq])
			value := strings.TrimSpace(p[eq+1:])
			optional[strings.ToLower(name)] = value
			continue
		}
		fixed = append(fixed, p)
	}
	return fixed, optional
}
