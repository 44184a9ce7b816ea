package codegen

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind tells whether a signature describes an event or an extrinsic call.
type Kind int

const (
	EventKind Kind = iota
	CallKind
)

func (k Kind) String() string {
	if k == CallKind {
		return "call"
	}
	return "event"
}

var (
	sectionRe    = regexp.MustCompile(`^[a-z][a-zA-Z0-9]*$`)
	eventNameRe  = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*$`)
	callNameRe   = regexp.MustCompile(`^[a-z][a-zA-Z0-9_]*$`)
	paramNameRe  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	typeTokensRe = regexp.MustCompile(`^[a-zA-Z0-9_<>(),;\[\]:\s]+$`)
)

// Param is a named argument of an event or a call.
type Param struct {
	Name string // Parameter name as it appears in the JSON params (e.g. "from", "newFree")
	Type string // Substrate type (e.g. "AccountId", "Balance", "Vec<u8>")
}

// Signature is a parsed event or call signature.
type Signature struct {
	Raw     string
	Kind    Kind
	Section string // Pallet name (e.g. "balances")
	Method  string // Event or call name (e.g. "Transfer", "setBalance")
	Params  []Param
}

// ParseSignature parses a signature string into structured data.
// Supported formats:
//   - "balances.Transfer(AccountId,AccountId,Balance)"
//   - "balances.Transfer(from: AccountId, to: AccountId, amount: Balance)"
//   - "balances.setBalance(who: LookupSource, newFree: Compact<Balance>)" for calls
func ParseSignature(sig string, kind Kind) (*Signature, error) {
	sig = strings.TrimSpace(sig)

	if sig == "" {
		return nil, fmt.Errorf("empty signature")
	}

	openParen := strings.Index(sig, "(")
	if openParen == -1 {
		return nil, fmt.Errorf("invalid signature: missing opening parenthesis")
	}

	closeParen := strings.LastIndex(sig, ")")
	if closeParen == -1 {
		return nil, fmt.Errorf("invalid signature: missing closing parenthesis")
	}

	if closeParen <= openParen || strings.TrimSpace(sig[closeParen+1:]) != "" {
		return nil, fmt.Errorf("invalid signature: malformed parentheses")
	}

	section, method, ok := strings.Cut(strings.TrimSpace(sig[:openParen]), ".")
	if !ok {
		return nil, fmt.Errorf("invalid signature: name must be <section>.<method>")
	}

	if !sectionRe.MatchString(section) {
		return nil, fmt.Errorf("invalid section '%s': must start with a lowercase letter "+
			"and contain only alphanumeric characters", section)
	}

	nameRe := eventNameRe
	if kind == CallKind {
		nameRe = callNameRe
	}
	if !nameRe.MatchString(method) {
		return nil, fmt.Errorf("invalid %s name '%s'", kind, method)
	}

	params, err := parseParameters(sig[openParen+1 : closeParen])
	if err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}

	return &Signature{
		Raw:     sig,
		Kind:    kind,
		Section: section,
		Method:  method,
		Params:  params,
	}, nil
}

// parseParameters parses the parameter list of a signature.
func parseParameters(paramsStr string) ([]Param, error) {
	paramsStr = strings.TrimSpace(paramsStr)

	if paramsStr == "" {
		return []Param{}, nil
	}

	paramStrings, err := splitParameters(paramsStr)
	if err != nil {
		return nil, err
	}

	params := make([]Param, 0, len(paramStrings))
	paramNames := make(map[string]bool)

	for i, paramStr := range paramStrings {
		param, err := parseParameter(strings.TrimSpace(paramStr), i)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter '%s': %w", paramStr, err)
		}

		if paramNames[param.Name] {
			return nil, fmt.Errorf("duplicate parameter name: %s", param.Name)
		}
		paramNames[param.Name] = true

		params = append(params, param)
	}

	return params, nil
}

// splitParameters splits the parameter string by top level commas. Commas inside
// generics, tuples and arrays belong to the type.
func splitParameters(paramsStr string) ([]string, error) {
	var params []string
	var current strings.Builder
	depth := 0

	for _, ch := range paramsStr {
		switch ch {
		case '(', '<', '[':
			depth++
			current.WriteRune(ch)
		case ')', '>', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced brackets in '%s'", paramsStr)
			}
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				params = append(params, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in '%s'", paramsStr)
	}

	params = append(params, current.String())

	return params, nil
}

// parseParameter parses a single parameter string.
// Formats:
//   - "AccountId" (type only, named param<index>)
//   - "from: AccountId" (name + type)
func parseParameter(paramStr string, index int) (Param, error) {
	if paramStr == "" {
		return Param{}, fmt.Errorf("empty parameter")
	}

	param := Param{Name: fmt.Sprintf("param%d", index), Type: paramStr}

	// the first top level colon separates the name; "::" is a path inside the type
	if name, typ, ok := strings.Cut(paramStr, ":"); ok && !strings.HasPrefix(typ, ":") {
		param.Name = strings.TrimSpace(name)
		param.Type = strings.TrimSpace(typ)
	}

	param.Type = strings.Join(strings.Fields(param.Type), "")

	if param.Type == "" {
		return Param{}, fmt.Errorf("missing type")
	}

	if !paramNameRe.MatchString(param.Name) {
		return Param{}, fmt.Errorf("invalid parameter name: %s", param.Name)
	}

	if !typeTokensRe.MatchString(param.Type) {
		return Param{}, fmt.Errorf("invalid type: %s", param.Type)
	}

	return param, nil
}

// FullName returns the name handlers are bound to, e.g. "balances.Transfer".
func (s *Signature) FullName() string {
	return s.Section + "." + s.Method
}

// IsCall reports whether the signature is an extrinsic call.
func (s *Signature) IsCall() bool {
	return s.Kind == CallKind
}

// EntityName returns the Go type the signature is stored as. Calls get a Call suffix
// so they never collide with an event of the same name.
func (s *Signature) EntityName() string {
	if s.Kind == CallKind {
		return ToPascalCase(s.Method) + "Call"
	}
	return s.Method
}

// TableName returns the table the entity is stored in.
func (s *Signature) TableName() string {
	return TableName(s.EntityName())
}

// HandlerFunc returns the name of the generated Go handler.
func (s *Signature) HandlerFunc() string {
	return "Handle" + s.EntityName()
}

// HandlerRef returns the reference the handler is registered under in pkg.
func (s *Signature) HandlerRef(pkg string) string {
	return pkg + ".handle" + s.EntityName()
}

// CanonicalSignature returns the signature without parameter names.
// Example: "balances.Transfer(AccountId,AccountId,Balance)"
func (s *Signature) CanonicalSignature() string {
	types := make([]string, len(s.Params))
	for i, param := range s.Params {
		types[i] = param.Type
	}

	return s.FullName() + "(" + strings.Join(types, ",") + ")"
}
