package ndl

import (
	"fmt"
	"strings"
)

// Script is one parsed statement stream: an ordered statement list plus the
// symbol table for the scope it defines. Macro bodies are scripts of their
// own, nested under the macro definition node.
type Script[E any] struct {
	registry  *Registry[E]
	baseName  string
	delimiter byte
	stmts     []*Node[E]            // statements in declaration order
	symbols   map[string]*Node[E]   // case-insensitive symbol table
	children  []*Node[E]            // nodes owned by this script
	pending   *Node[E]              // macro definition awaiting its body
	noDefs    bool                  // no new macro definitions: bare calls only
}

// NewScript creates an empty script bound to the given registry.
func NewScript[E any](reg *Registry[E]) *Script[E] {
	return &Script[E]{
		registry:  reg,
		delimiter: DefaultDelimiter,
		symbols:   map[string]*Node[E]{},
	}
}

// Registry returns the registry this script resolves global symbols against.
func (s *Script[E]) Registry() *Registry[E] { return s.registry }

// SetDelimiter overrides the statement delimiter (newlines always split).
func (s *Script[E]) SetDelimiter(delim byte) { s.delimiter = delim }

// SetMacroDefinitionsAllowed controls whether statements without an equals
// sign define macros (the default) or must be bare calls, as when parsing a
// snippet that may only consist of calls.
func (s *Script[E]) SetMacroDefinitionsAllowed(allowed bool) { s.noDefs = !allowed }

// BaseName returns the dotted display prefix for symbols in this scope.
func (s *Script[E]) BaseName() string { return s.baseName }

// SetBaseName sets the dotted display prefix.
func (s *Script[E]) SetBaseName(baseName string) { s.baseName = baseName }

// Statements returns the statement nodes in declaration order.
func (s *Script[E]) Statements() []*Node[E] { return s.stmts }

func (s *Script[E]) addChild(node *Node[E]) { s.children = append(s.children, node) }

// ClearEvalValues detaches the host handles of every node this script owns,
// including nested macro body scripts.
func (s *Script[E]) ClearEvalValues() {
	for _, node := range s.children {
		node.ClearEvalValue()
		if node.script != nil && node.typ == TypeMacro {
			node.script.ClearEvalValues()
		}
	}
}

func symkey(name string) string { return strings.ToLower(name) }

// FindSymbol looks a name up in this scope. When dotted is true, a name of
// the form call.symbol traverses into the macro call's body scope; each
// segment except the last must name a macro call.
func (s *Script[E]) FindSymbol(symbol string, dotted bool) (*Node[E], error) {
	if node, ok := s.symbols[symkey(symbol)]; ok {
		return node, nil
	}
	if !dotted {
		return nil, nil
	}
	dot := strings.IndexByte(symbol, '.')
	if dot < 0 {
		return nil, nil
	}
	head, ok := s.symbols[symkey(symbol[:dot])]
	if !ok {
		return nil, nil
	}
	// a variable can legitimately hold further dotted values itself
	if head.script == nil {
		return head, nil
	}
	if head.typ != TypeMacroCall {
		return nil, fmt.Errorf("%w: %q is not a macro call, cannot resolve %q",
			ErrSymbol, symbol[:dot], symbol)
	}
	return head.script.FindSymbol(symbol[dot+1:], true)
}

// ExistsSymbol reports whether the name is present in this scope.
func (s *Script[E]) ExistsSymbol(symbol string) bool {
	_, ok := s.symbols[symkey(symbol)]
	return ok
}

// AddSymbol binds a new name. Rebinding is only allowed over an
// undetermined placeholder, which a later definition is expected to fill.
func (s *Script[E]) AddSymbol(symbol string, node *Node[E]) error {
	if existing, ok := s.symbols[symkey(symbol)]; ok {
		if existing.typ != TypeUndetermined {
			return fmt.Errorf("%w: symbol %q already assigned to %q, redefinition not allowed",
				ErrSymbol, symbol, existing.value)
		}
	}
	s.symbols[symkey(symbol)] = node
	return nil
}

// AssignSymbol rebinds an existing name, as macro parameter binding does.
func (s *Script[E]) AssignSymbol(symbol string, node *Node[E]) error {
	if _, ok := s.symbols[symkey(symbol)]; !ok {
		return fmt.Errorf("%w: symbol %q does not exist, cannot assign %q",
			ErrSymbol, symbol, node.value)
	}
	s.symbols[symkey(symbol)] = node
	return nil
}

// CheckName resolves a name: local scope first, then the registry's global
// scope, then the built-in function table by full name or alias. Only call
// sites accept abbreviated function names. A global macro hit produces a
// fresh MacroCall node capturing the macro's formal parameter list, so the
// shared definition is never mutated by a call site.
func (s *Script[E]) CheckName(name string, localOnly bool) (*Node[E], error) {
	if found, err := s.FindSymbol(name, true); err != nil || found != nil {
		return found, err
	}
	if !localOnly {
		found, err := s.registry.global.FindSymbol(name, true)
		if err != nil {
			return nil, err
		}
		if found != nil {
			if found.typ == TypeMacro {
				call := newNode("", name, s, TypeMacroCall)
				call.SetScript(found.script)
				call.SetFormals(found.formals)
				return call, nil
			}
			return found, nil
		}
	}
	if canonical, ok := LookupFunctionExact(name); ok {
		return newNode("", canonical, s, TypeFunction), nil
	}
	return nil, nil
}

// FileParse parses file-level text. A file may carry named sections with
// load and run keys listing the sections to parse, in order; otherwise the
// whole text is one statement stream.
func (s *Script[E]) FileParse(text string) error {
	sections, err := FileSections(text)
	if err != nil {
		return err
	}
	_, hasLoad := sections["load"]
	_, hasRun := sections["run"]
	if !hasLoad && !hasRun {
		return s.Parse(text)
	}
	for _, key := range []string{"load", "run"} {
		list, ok := sections[key]
		if !ok {
			continue
		}
		for _, name := range splitList(list) {
			body, ok := sections[symkey(name)]
			if !ok {
				return fmt.Errorf("%w: section %q named by %q not found", ErrSyntax, name, key)
			}
			if err := s.Parse(body); err != nil {
				return err
			}
		}
	}
	return nil
}

// Parse parses a statement stream into this script. An outer [ ] or { }
// layer is stripped first.
func (s *Script[E]) Parse(text string) error {
	if inner, ok := stripBraces(text); ok {
		text = inner
	}
	stmts, err := SplitStatements(text, s.delimiter)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := s.parseStatement(stmt); err != nil {
			return err
		}
	}
	if s.pending != nil {
		name := s.pending.name
		s.pending = nil
		return fmt.Errorf("%w: macro %q has no body", ErrSyntax, name)
	}
	return nil
}

func (s *Script[E]) parseStatement(stmt string) error {
	// a definition from the previous statement is waiting for this body
	if s.pending != nil {
		macro := s.pending
		s.pending = nil
		return s.parseMacroBody(macro, stmt)
	}

	eq := indexTopLevel(stmt, '=')

	if eq < 0 {
		if s.noDefs {
			// bare call
			node, err := s.parseCall(stmt)
			if err != nil {
				return err
			}
			if err := s.AddSymbol(node.name, node); err != nil {
				return err
			}
			s.stmts = append(s.stmts, node)
			return nil
		}
		if strings.IndexAny(stmt, "([{") < 0 {
			return fmt.Errorf("%w: statement has no %q: %q", ErrSyntax, "=", stmt)
		}
		// macro definition header; the body is the next statement
		macro, err := s.parseDefinition(stmt)
		if err != nil {
			return err
		}
		s.pending = macro
		return nil
	}

	key := strings.TrimSpace(stmt[:eq])
	value := strings.TrimSpace(stmt[eq+1:])
	if key == "" || value == "" {
		return fmt.Errorf("%w: malformed statement %q", ErrSyntax, stmt)
	}

	// a parenthesized key is a macro definition with an inline body
	if !s.noDefs && strings.IndexAny(key, "([{") >= 0 {
		macro, err := s.parseDefinition(key)
		if err != nil {
			return err
		}
		return s.parseMacroBody(macro, value)
	}

	if _, ok := LookupFunctionExact(key); ok {
		return fmt.Errorf("%w: %q is reserved, it is also the name of a function", ErrSymbol, key)
	}

	if open := strings.IndexAny(value, "([{"); open > 0 {
		// function or macro call
		node, err := s.parseCall(value)
		if err != nil {
			return err
		}
		node.SetName(key)
		if err := s.AddSymbol(key, node); err != nil {
			return err
		}
		s.stmts = append(s.stmts, node)
		return nil
	}

	// plain assignment: a symbol table entry, not an evaluated statement
	node, err := s.parseVariable(value, true)
	if err != nil {
		return err
	}
	if err := s.AddSymbol(key, node); err != nil {
		return err
	}
	// an alias to an existing node keeps that node's own name
	if node.generated {
		node.SetName(key)
	}
	return nil
}

// parseMacroBody attaches a body script to a macro definition node. A body
// wrapped in braces may hold multiple statements; a bare statement is a
// one-line definition in which no further macros may be defined.
func (s *Script[E]) parseMacroBody(macro *Node[E], body string) error {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(body, "=") {
		body = strings.TrimSpace(body[1:])
	}
	if body == "" {
		return fmt.Errorf("%w: macro %q has no body", ErrSyntax, macro.name)
	}
	inner, braced := stripBraces(body)
	script := NewScript(s.registry)
	script.delimiter = s.delimiter
	script.noDefs = !braced
	// formals become placeholder parameters, replaced by actuals per call
	for _, formal := range macro.formals {
		p := newNode(formal, formal, script, TypeParameter)
		macro.InsertParam(p)
		if err := script.AddSymbol(formal, p); err != nil {
			return err
		}
	}
	macro.SetScript(script)
	return script.Parse(inner)
}

// parseDefinition parses a macro definition header of the form name(formals)
// and registers the macro in the registry's global scope.
func (s *Script[E]) parseDefinition(token string) (*Node[E], error) {
	name, formals, err := ParseCallString(token)
	if err != nil {
		return nil, err
	}
	if existing, err := s.CheckName(name, false); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: %q already defined", ErrSymbol, name)
	}
	global := s.registry.global
	macro := newNode(name, token, global, TypeMacro)
	macro.SetFormals(formals)
	if err := global.AddSymbol(name, macro); err != nil {
		return nil, err
	}
	return macro, nil
}

// parseCall parses name(params) into a call node. The name must resolve to
// a macro or a built-in function.
func (s *Script[E]) parseCall(token string) (*Node[E], error) {
	open := strings.IndexAny(token, "([{")
	if open <= 0 {
		return nil, fmt.Errorf("%w: call cannot be parsed: %q", ErrSyntax, token)
	}
	name := strings.TrimSpace(token[:open])
	node, err := s.CheckName(name, false)
	if err != nil {
		return nil, err
	}
	if node == nil {
		// only a call site may abbreviate a function name
		if canonical, ok := LookupFunction(name); ok {
			node = newNode("", canonical, s, TypeFunction)
		}
	}
	if node == nil {
		return nil, fmt.Errorf("%w: undefined function or macro %q", ErrSymbol, name)
	}
	inner, ok := stripBraces(token[open:])
	if !ok {
		return nil, fmt.Errorf("%w: malformed parameter list in %q", ErrSyntax, token)
	}
	if err := s.parseParameters(node, inner); err != nil {
		return nil, err
	}
	return node, nil
}

// parseParameters parses a call or array parameter list. Parameters that do
// not resolve become undetermined placeholders in the local symbol table,
// to be bound by a later pass.
func (s *Script[E]) parseParameters(node *Node[E], text string) error {
	for _, item := range splitTopLevel(text, ",:") {
		var param *Node[E]
		var err error
		if open := strings.IndexAny(item, "([{"); open > 0 && indexTopLevel(item, '=') < 0 {
			param, err = s.parseCall(item)
		} else {
			param, err = s.parseVariable(item, false)
			if err == nil && param == nil {
				typ := TypeUndetermined
				if strings.IndexByte(item, '.') >= 0 {
					typ = TypeDotParameter
				}
				param = newNode(item, item, s, typ)
				if err := s.AddSymbol(item, param); err != nil {
					return err
				}
			}
		}
		if err != nil {
			return err
		}
		node.InsertParam(param)
	}
	return nil
}

// parseVariable parses a literal, array, optional name=value binding, or a
// reference to an existing symbol. With createNew set, an unknown name
// becomes a fresh variable node; otherwise nil is returned so the caller
// can decide how to treat the unresolved name.
func (s *Script[E]) parseVariable(token string, createNew bool) (*Node[E], error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty value", ErrSyntax)
	}
	if openBrace(token[0]) {
		inner, ok := stripBraces(token)
		if !ok {
			return nil, fmt.Errorf("%w: malformed array %q", ErrSyntax, token)
		}
		array := newNode("", token, s, TypeArray)
		if err := s.parseParameters(array, inner); err != nil {
			return nil, err
		}
		return array, nil
	}
	if text, ok := unquote(token); ok {
		return newNode("", text, s, TypeConstant), nil
	}
	if isNumeric(token) {
		return newNode("", token, s, TypeConstant), nil
	}
	if eq := indexTopLevel(token, '='); eq > 0 {
		name := strings.TrimSpace(token[:eq])
		value := strings.TrimSpace(token[eq+1:])
		value, _ = unquote(value)
		return newNode(name, value, s, TypeOptionalParameter), nil
	}
	node, err := s.CheckName(token, false)
	if err != nil {
		return nil, err
	}
	if node == nil && createNew {
		node = newNode("", token, s, TypeVariable)
	}
	return node, nil
}

// Evaluate walks the statement list in declaration order for one pass,
// delegating macro calls to the expansion engine and everything else to the
// host evaluator. When skipThrough is non-nil, statements up to and
// including it are skipped so incremental edits resume where they stopped.
// The last node evaluated is returned.
func (s *Script[E]) Evaluate(ev NodeEvaluator[E], baseName string, pass Pass, skipThrough *Node[E]) (*Node[E], error) {
	last := skipThrough
	skip := skipThrough != nil
	// the base name sticks so symbols in this scope can be re-qualified
	// after evaluation, as dotted references from an outer scope need
	s.baseName = baseName

	for _, node := range s.stmts {
		if skip {
			if node == skipThrough {
				skip = false
			}
			continue
		}
		if node.typ == TypeMacroCall {
			if _, err := node.EvaluateMacro(ev, baseName, pass); err != nil {
				return last, err
			}
			if err := ev.ProcessOptionalParameters(node); err != nil {
				return last, err
			}
		} else {
			if err := ev.Evaluate(node, baseName, pass); err != nil {
				return last, err
			}
		}
		last = node
	}
	return last, nil
}
