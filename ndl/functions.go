package ndl

import "strings"

// MatchName reports whether token names candidate under the abbreviated
// command rule: a case-insensitive prefix match that covers at least half
// of the candidate, or of the alternate alias. On success the canonical
// candidate name is returned, so callers always work with full names.
func MatchName(token, candidate, alternate string) (string, bool) {
	if matchPrefix(token, candidate) {
		return candidate, true
	}
	if alternate != "" && matchPrefix(token, alternate) {
		return candidate, true
	}
	return token, false
}

func matchPrefix(token, candidate string) bool {
	if len(token) > len(candidate) || !strings.EqualFold(token, candidate[:len(token)]) {
		return false
	}
	// partial matches shorter than half the full name are too ambiguous
	return len(token) >= len(candidate)/2
}

// builtin is one entry of the built-in function table.
type builtin struct {
	name      string
	alternate string
}

// Built-in computation functions, matched by the abbreviated-name rule.
// The first column is the canonical operation name handed to the backend.
var builtins = []builtin{
	{"Constant", "Const"},
	{"LearnableParameter", "Parameter"},
	{"InputValue", "Input"},
	{"ImageInput", "Image"},
	{"Scale", ""},
	{"Times", ""},
	{"Plus", ""},
	{"Minus", ""},
	{"Negate", ""},
	{"RectifiedLinear", "ReLU"},
	{"Sigmoid", ""},
	{"Tanh", ""},
	{"Exp", ""},
	{"Log", ""},
	{"Softmax", ""},
	{"SumElements", ""},
	{"SquareError", "SE"},
	{"CrossEntropyWithSoftmax", "CEWithSM"},
	{"MatrixL1Reg", "L1Reg"},
	{"MatrixL2Reg", "L2Reg"},
	{"PerDimMeanVarNormalization", "PerDimMVNorm"},
	{"ErrorPrediction", "ClassificationError"},
	{"Dropout", ""},
	{"Mean", ""},
	{"InvStdDev", ""},
	{"Convolution", "Convolve"},
	{"MaxPooling", ""},
	{"AveragePooling", ""},
	{"Delay", ""},
	{"ElementTimes", ""},
	{"DiagTimes", ""},
	{"CosDistance", "CosDist"},
}

// LookupFunction resolves a (possibly abbreviated) token against the
// built-in function table and returns the canonical operation name.
// The first match wins.
func LookupFunction(token string) (string, bool) {
	for _, b := range builtins {
		if name, ok := MatchName(token, b.name, b.alternate); ok {
			return name, true
		}
	}
	return token, false
}

// LookupFunctionExact resolves a token that spells a builtin name or alias
// in full, case-insensitively. Identifier positions use this form, so a
// short variable name never collides with an abbreviation of a longer
// function name.
func LookupFunctionExact(token string) (string, bool) {
	for _, b := range builtins {
		if strings.EqualFold(token, b.name) || (b.alternate != "" && strings.EqualFold(token, b.alternate)) {
			return b.name, true
		}
	}
	return token, false
}
