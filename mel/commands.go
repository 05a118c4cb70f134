package mel

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/eldakms/CNTK/engine"
	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

// command is one dispatch table entry. Matching follows the abbreviated
// name rule against the canonical name and the alternate alias.
type command struct {
	name string
	alt  string
	run  func(i *Interpreter, target string, params []string) error
}

// The dispatch table. Order matters: the first match wins, and a token can
// never be longer than the name it matches, so a command that extends
// another one (CreateModelWithName extends CreateModel) goes after it.
var commands = []command{
	{"CreateModel", "", cmdCreateModel},
	{"CreateModelWithName", "", cmdCreateModelWithName},
	{"LoadModel", "", cmdLoadModel},
	{"LoadModelWithName", "", cmdLoadModelWithName},
	{"LoadNDLSnippet", "", cmdLoadNDLSnippet},
	{"SaveDefaultModel", "", cmdSaveDefaultModel},
	{"SaveModel", "", cmdSaveModel},
	{"SetDefaultModel", "", cmdSetDefaultModel},
	{"UnloadModel", "", cmdUnloadModel},
	{"DumpModel", "Dump", cmdDumpModel},
	{"DumpNode", "", cmdDumpNode},
	{"CopyNode", "Copy", cmdCopyNode},
	{"CopySubTree", "", cmdCopySubTree},
	{"CopyNodeInputs", "CopyInputs", cmdCopyNodeInputs},
	{"SetNodeInput", "SetInput", cmdSetNodeInput},
	{"SetNodeInputs", "SetInputs", cmdSetNodeInputs},
	{"SetProperty", "", cmdSetProperty},
	{"SetPropertyForSubTree", "", cmdSetPropertyForSubTree},
	{"RemoveNode", "Remove", cmdRemoveNodes},
	{"DeleteNode", "Delete", cmdRemoveNodes},
	{"Rename", "", cmdRename},
}

// checkArity validates a parameter count. optional < 0 means variadic.
func checkArity(params []string, fixed, optional int, usage string) error {
	if len(params) < fixed || (optional >= 0 && len(params) > fixed+optional) {
		return fmt.Errorf("%w: usage: %s", ndl.ErrArity, usage)
	}
	return nil
}

func cmdCreateModel(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 0, 0, "model = CreateModel()"); err != nil {
		return err
	}
	i.setModel(target, engine.NewBinding(i.reg))
	return nil
}

func cmdCreateModelWithName(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 1, 0, "CreateModelWithName(modelName)"); err != nil {
		return err
	}
	i.setModel(params[0], engine.NewBinding(i.reg))
	return nil
}

func cmdLoadModel(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 1, 0, `model = LoadModel("modelFileName", [format=cntk])`); err != nil {
		return err
	}
	if err := modelFormat(opts); err != nil {
		return err
	}
	net, err := network.LoadFromFile(fixed[0])
	if err != nil {
		return err
	}
	i.setModel(target, engine.BindNetwork(i.reg, net))
	return nil
}

func cmdLoadModelWithName(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 2, 0, `LoadModelWithName(modelName, "modelFileName", [format=cntk])`); err != nil {
		return err
	}
	if err := modelFormat(opts); err != nil {
		return err
	}
	net, err := network.LoadFromFile(fixed[1])
	if err != nil {
		return err
	}
	i.setModel(fixed[0], engine.BindNetwork(i.reg, net))
	return nil
}

func cmdLoadNDLSnippet(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 1, 2, `LoadNDLSnippet(modelName, "ndlFileName", [section])`); err != nil {
		return err
	}
	// the model name is the first fixed parameter; an assignment target
	// stands in for it when only the file is given
	name, path := target, fixed[0]
	if len(fixed) >= 2 {
		name, path = fixed[0], fixed[1]
	}
	section := opts["section"]
	if len(fixed) == 3 {
		section = fixed[2]
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snippet %s: %w", path, err)
	}
	b := engine.NewBinding(i.reg)
	if section != "" {
		sections, err := ndl.FileSections(string(text))
		if err != nil {
			return err
		}
		body, ok := sections[strings.ToLower(section)]
		if !ok {
			return fmt.Errorf("%w: section %q not found in %s", ErrState, section, path)
		}
		if err := b.Script.Parse(body); err != nil {
			return err
		}
	} else if err := b.Script.FileParse(string(text)); err != nil {
		return err
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		return err
	}
	i.setModel(name, b)
	return nil
}

func cmdSaveDefaultModel(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 1, 0, `SaveDefaultModel("modelFileName", [format=cntk])`); err != nil {
		return err
	}
	if err := modelFormat(opts); err != nil {
		return err
	}
	b, err := i.DefaultModel()
	if err != nil {
		return err
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		return err
	}
	return b.Net.SaveToFile(fixed[0])
}

func cmdSaveModel(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 2, 0, `SaveModel(modelName, "modelFileName", [format=cntk])`); err != nil {
		return err
	}
	if err := modelFormat(opts); err != nil {
		return err
	}
	b := i.Model(fixed[0])
	if b == nil {
		return fmt.Errorf("%w: unknown model %q", ErrState, fixed[0])
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		return err
	}
	return b.Net.SaveToFile(fixed[1])
}

func cmdSetDefaultModel(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 1, 0, "SetDefaultModel(modelName)"); err != nil {
		return err
	}
	if i.Model(params[0]) == nil {
		return fmt.Errorf("%w: unknown model %q", ErrState, params[0])
	}
	i.defName = strings.ToLower(params[0])
	return nil
}

func cmdUnloadModel(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 1, -1, "UnloadModel(modelName, ...)"); err != nil {
		return err
	}
	for _, name := range params {
		key := strings.ToLower(name)
		if _, ok := i.models[key]; !ok {
			i.Logger.Printf("UnloadModel: model %q is not loaded", name)
			continue
		}
		delete(i.models, key)
		if i.defName == key {
			i.defName = ""
		}
	}
	return nil
}

func cmdDumpModel(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 1, 1, `DumpModel(modelName, ["dumpFileName"], [includeData=false])`); err != nil {
		return err
	}
	b := i.Model(fixed[0])
	if b == nil {
		return fmt.Errorf("%w: unknown model %q", ErrState, fixed[0])
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		return err
	}
	w, closeFile, err := i.dumpWriter(fixed, 1)
	if err != nil {
		return err
	}
	defer closeFile()
	return b.Net.Dump(w, network.DumpOptions{IncludeData: dumpData(opts)})
}

func cmdDumpNode(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 1, 1, `DumpNode(nodeName, ["dumpFileName"], [includeData=false])`); err != nil {
		return err
	}
	b, nodes, err := i.findSymbols(fixed[0])
	if err != nil {
		return err
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		return err
	}
	w, closeFile, err := i.dumpWriter(fixed, 1)
	if err != nil {
		return err
	}
	defer closeFile()
	for _, node := range nodes {
		if err := b.Net.DumpNode(w, node, network.DumpOptions{IncludeData: dumpData(opts)}); err != nil {
			return err
		}
	}
	return nil
}

func cmdCopyNode(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 2, 0, "CopyNode(fromNode, toNode, [copy=all|value])"); err != nil {
		return err
	}
	flags, err := copyFlags(opts)
	if err != nil {
		return err
	}
	from, fromPattern, err := i.resolveModel(fixed[0])
	if err != nil {
		return err
	}
	to, toPattern, err := i.resolveModel(fixed[1])
	if err != nil {
		return err
	}
	fromNodes := from.Net.NodesMatching(fromPattern)
	if len(fromNodes) == 0 {
		return fmt.Errorf("%w: %q", network.ErrNodeNotFound, fixed[0])
	}
	if err := from.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	if from != to {
		if err := to.ProcessPasses(ndl.PassResolve, false); err != nil {
			return err
		}
	}
	for _, node := range fromNodes {
		toName := wildcardName(fromPattern, node.Name(), toPattern)
		if _, err := to.Net.CopyNode(from.Net, node.Name(), toName, flags); err != nil {
			return err
		}
	}
	return nil
}

func cmdCopySubTree(i *Interpreter, target string, params []string) error {
	fixed, opts := splitOptional(params)
	if err := checkArity(fixed, 2, 0, "CopySubTree(fromRootNode, toRootNamePrefix, [copy=all|value])"); err != nil {
		return err
	}
	flags, err := copyFlags(opts)
	if err != nil {
		return err
	}
	from, roots, err := i.findSymbols(fixed[0])
	if err != nil {
		return err
	}
	to, prefix, err := i.resolveModel(fixed[1])
	if err != nil {
		return err
	}
	if err := from.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	if from != to {
		if err := to.ProcessPasses(ndl.PassResolve, false); err != nil {
			return err
		}
	}
	for _, root := range roots {
		if _, err := to.Net.CopySubTree(from.Net, root, prefix, flags); err != nil {
			return err
		}
	}
	return nil
}

func cmdCopyNodeInputs(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 2, 0, "CopyNodeInputs(fromNode, toNode)"); err != nil {
		return err
	}
	from, fromNodes, err := i.findSymbols(params[0])
	if err != nil {
		return err
	}
	to, toNodes, err := i.findSymbols(params[1])
	if err != nil {
		return err
	}
	if from != to {
		return fmt.Errorf("%w: CopyNodeInputs(%q, %q)", ErrReferenceScope, params[0], params[1])
	}
	if len(fromNodes) != 1 || len(toNodes) != 1 {
		return fmt.Errorf("%w: CopyNodeInputs needs one source and one destination node", ErrState)
	}
	if err := from.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	toNodes[0].AttachInputs(fromNodes[0].Inputs()...)
	return nil
}

func cmdSetNodeInput(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 3, 0, "SetNodeInput(node, inputNumber, inputNode)"); err != nil {
		return err
	}
	slot, err := strconv.Atoi(params[1])
	if err != nil || slot < 0 {
		return fmt.Errorf("%w: input number %q must be a non-negative integer", ndl.ErrSyntax, params[1])
	}
	// both sides resolve before anything mutates
	b, nodes, err := i.findSymbols(params[0])
	if err != nil {
		return err
	}
	ib, inputs, err := i.findSymbols(params[2])
	if err != nil {
		return err
	}
	if b != ib {
		return fmt.Errorf("%w: SetNodeInput(%q, %d, %q)", ErrReferenceScope, params[0], slot, params[2])
	}
	if len(inputs) != 1 && len(inputs) != len(nodes) {
		return fmt.Errorf("%w: %d nodes cannot take %d inputs", ErrState, len(nodes), len(inputs))
	}
	if err := b.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	for idx, node := range nodes {
		input := inputs[0]
		if len(inputs) > 1 {
			input = inputs[idx]
		}
		node.SetInput(slot, input)
	}
	return nil
}

func cmdSetNodeInputs(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 2, -1, "SetNodeInputs(node, inputNode, ...)"); err != nil {
		return err
	}
	b, nodes, err := i.findSymbols(params[0])
	if err != nil {
		return err
	}
	if len(nodes) != 1 {
		return fmt.Errorf("%w: SetNodeInputs needs exactly one target node", ErrState)
	}
	inputs := make([]*network.Node, 0, len(params)-1)
	for _, ref := range params[1:] {
		ib, found, err := i.findSymbols(ref)
		if err != nil {
			return err
		}
		if ib != b {
			return fmt.Errorf("%w: input %q", ErrReferenceScope, ref)
		}
		if len(found) != 1 {
			return fmt.Errorf("%w: input %q matches %d nodes", ErrState, ref, len(found))
		}
		inputs = append(inputs, found[0])
	}
	if err := b.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	nodes[0].AttachInputs(inputs...)
	return nil
}

// properties settable on a single node
var nodeProperties = []struct {
	name string
	alt  string
	role network.Role
	flag bool
}{
	{"ComputeGradient", "NeedsGradient", 0, true},
	{"Feature", "", network.RoleFeature, false},
	{"Label", "", network.RoleLabel, false},
	{"FinalCriterion", "Criteria", network.RoleCriterion, false},
	{"Evaluation", "Eval", network.RoleEvaluation, false},
	{"Output", "", network.RoleOutput, false},
}

func cmdSetProperty(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 3, 0, "SetProperty(node, propertyName, propertyValue)"); err != nil {
		return err
	}
	value, err := strconv.ParseBool(strings.ToLower(params[2]))
	if err != nil {
		return fmt.Errorf("%w: property value %q must be true or false", ndl.ErrSyntax, params[2])
	}
	b, nodes, err := i.findSymbols(params[0])
	if err != nil {
		return err
	}
	if err := b.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	for _, prop := range nodeProperties {
		if _, ok := ndl.MatchName(params[1], prop.name, prop.alt); !ok {
			continue
		}
		for _, node := range nodes {
			if prop.flag {
				node.NeedGradient = value
			} else {
				b.Net.SetRole(node, prop.role, value)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: unknown property %q", ErrState, params[1])
}

func cmdSetPropertyForSubTree(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 3, 0, "SetPropertyForSubTree(rootNode, propertyName, propertyValue)"); err != nil {
		return err
	}
	if _, ok := ndl.MatchName(params[1], "ComputeGradient", "NeedsGradient"); !ok {
		return fmt.Errorf("%w: property %q cannot apply to a subtree", ErrState, params[1])
	}
	value, err := strconv.ParseBool(strings.ToLower(params[2]))
	if err != nil {
		return fmt.Errorf("%w: property value %q must be true or false", ndl.ErrSyntax, params[2])
	}
	b, roots, err := i.findSymbols(params[0])
	if err != nil {
		return err
	}
	if err := b.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	for _, root := range roots {
		b.Net.SetLearnablesBelowNeedGradient(value, root)
	}
	return nil
}

func cmdRemoveNodes(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 1, -1, "RemoveNode(node, ...)"); err != nil {
		return err
	}
	// resolve everything before the first deletion
	type victim struct {
		b    *engine.Binding
		node *network.Node
	}
	var victims []victim
	processed := map[*engine.Binding]bool{}
	for _, ref := range params {
		b, nodes, err := i.findSymbols(ref)
		if err != nil {
			return err
		}
		if !processed[b] {
			if err := b.ProcessPasses(ndl.PassResolve, false); err != nil {
				return err
			}
			processed[b] = true
		}
		for _, node := range nodes {
			victims = append(victims, victim{b, node})
		}
	}
	for _, v := range victims {
		if err := v.b.Net.DeleteNode(v.node.Name()); err != nil {
			return err
		}
	}
	return nil
}

func cmdRename(i *Interpreter, target string, params []string) error {
	if err := checkArity(params, 2, 0, "Rename(oldNodeName, newNodeName)"); err != nil {
		return err
	}
	from, fromPattern, err := i.resolveModel(params[0])
	if err != nil {
		return err
	}
	to, toPattern, err := i.resolveModel(params[1])
	if err != nil {
		return err
	}
	if from != to {
		return fmt.Errorf("%w: Rename(%q, %q)", ErrReferenceScope, params[0], params[1])
	}
	nodes := from.Net.NodesMatching(fromPattern)
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %q", network.ErrNodeNotFound, params[0])
	}
	if err := from.ProcessPasses(ndl.PassResolve, false); err != nil {
		return err
	}
	for _, node := range nodes {
		if err := from.Net.RenameNode(node, wildcardName(fromPattern, node.Name(), toPattern)); err != nil {
			return err
		}
	}
	return nil
}

// modelFormat validates the optional format parameter of the load and save
// commands. Only the native format is implemented.
func modelFormat(opts map[string]string) error {
	switch strings.ToLower(opts["format"]) {
	case "", "cntk":
		return nil
	}
	return fmt.Errorf("%w: unknown model format %q", ndl.ErrSyntax, opts["format"])
}

func copyFlags(opts map[string]string) (network.CopyFlags, error) {
	switch strings.ToLower(opts["copy"]) {
	case "", "all":
		return network.CopyAll, nil
	case "value":
		return network.CopyValue, nil
	}
	return 0, fmt.Errorf("%w: copy=%q, expected all or value", ndl.ErrSyntax, opts["copy"])
}

func dumpData(opts map[string]string) bool {
	v, err := strconv.ParseBool(strings.ToLower(opts["includedata"]))
	return err == nil && v
}

// dumpWriter picks the dump destination: the optional file parameter at
// index idx, or the interpreter's output stream.
func (i *Interpreter) dumpWriter(fixed []string, idx int) (io.Writer, func(), error) {
	if idx >= len(fixed) {
		return i.Out, func() {}, nil
	}
	f, err := os.Create(fixed[idx])
	if err != nil {
		return nil, nil, fmt.Errorf("create dump file %s: %w", fixed[idx], err)
	}
	return f, func() { f.Close() }, nil
}
