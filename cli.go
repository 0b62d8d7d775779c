package process

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// CLIRun is bound into kong so process commands can reach the caller's
// context and report the outcome. Call, when set, replaces the plain
// Definition.Call, letting the caller add retries or time limits.
type CLIRun struct {
	Context context.Context
	Call    func(ctx context.Context, def *Definition, attrs map[string]any) (Outcome, error)
	Report  func(name string, out Outcome) error
}

// CLICommand runs one registered process. Attributes come from a YAML or
// JSON object given with --input and from repeated --attr key=value flags,
// the flags winning on conflicts.
type CLICommand struct {
	Input string            `name:"input" short:"i" help:"Input attributes as a YAML or JSON object."`
	Attrs map[string]string `name:"attr" short:"a" help:"Input attribute as key=value." mapsep:"none"`

	def *Definition
}

// Attributes merges the input document and the attr flags.
func (c *CLICommand) Attributes() (map[string]any, error) {
	attrs := map[string]any{}
	if strings.TrimSpace(c.Input) != "" {
		if err := yaml.Unmarshal([]byte(c.Input), &attrs); err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "parse --input").
				WithTextCode("CLI_INPUT_INVALID")
		}
	}
	for k, v := range c.Attrs {
		attrs[k] = v
	}
	return attrs, nil
}

func (c *CLICommand) Run(run *CLIRun) error {
	if run == nil {
		run = &CLIRun{}
	}
	ctx := run.Context
	if ctx == nil {
		ctx = context.Background()
	}

	attrs, err := c.Attributes()
	if err != nil {
		return err
	}
	call := run.Call
	if call == nil {
		call = func(ctx context.Context, def *Definition, attrs map[string]any) (Outcome, error) {
			return def.Call(ctx, attrs)
		}
	}
	out, err := call(ctx, c.def, attrs)
	if err != nil {
		return err
	}
	if run.Report != nil {
		return run.Report(c.def.Name(), out)
	}
	return nil
}

// CLIOptions exposes every registered process as a kong command. Names are
// split on "::" into nested commands, so "Account::OwnerCreation" becomes
// "account owner-creation".
func (r *Registry) CLIOptions() ([]kong.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.initialized {
		return nil, newError(ErrRegistryNotReady, "", nil, nil)
	}

	root := newCLINode("")
	for _, name := range r.order {
		def := r.defs[name]
		if err := root.insert(CLIPath(name), def.Description(), &CLICommand{def: def}); err != nil {
			return nil, err
		}
	}
	return buildCLIOptions(root)
}

// CLIPath returns the command path of a process name.
func CLIPath(name string) []string {
	var path []string
	for _, segment := range strings.Split(name, "::") {
		if s := kebab(segment); s != "" {
			path = append(path, s)
		}
	}
	return path
}

func kebab(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

type cliNode struct {
	name     string
	help     string
	handler  any
	children map[string]*cliNode
}

func newCLINode(name string) *cliNode {
	return &cliNode{
		name:     name,
		children: make(map[string]*cliNode),
	}
}

func (n *cliNode) insert(path []string, help string, handler any) error {
	if len(path) == 0 {
		return errors.New("cli path cannot be empty", errors.CategoryBadInput).
			WithTextCode("CLI_PATH_EMPTY")
	}

	curr := n
	for idx, segment := range path {
		child, ok := curr.children[segment]
		if !ok {
			child = newCLINode(segment)
			curr.children[segment] = child
		}

		if idx == len(path)-1 {
			if child.handler != nil || len(child.children) > 0 {
				return errors.New("cli command already registered for path", errors.CategoryConflict).
					WithTextCode("CLI_PATH_CONFLICT").
					WithMetadata(map[string]any{"path": strings.Join(path, " ")})
			}
			child.handler = handler
			child.help = help
			return nil
		}
		if child.handler != nil {
			return errors.New("cli command cannot also be a group", errors.CategoryConflict).
				WithTextCode("CLI_PATH_CONFLICT").
				WithMetadata(map[string]any{"path": strings.Join(path[:idx+1], " ")})
		}
		curr = child
	}
	return nil
}

func buildStructForNode(node *cliNode) (reflect.Value, error) {
	childNames := make([]string, 0, len(node.children))
	for name := range node.children {
		childNames = append(childNames, name)
	}
	sort.Strings(childNames)

	fields := make([]reflect.StructField, 0, len(childNames))
	values := make([]reflect.Value, 0, len(childNames))
	usedNames := make(map[string]struct{})

	for _, name := range childNames {
		child := node.children[name]

		fieldName := exportFieldName(name)
		if _, exists := usedNames[fieldName]; exists {
			return reflect.Value{}, fmt.Errorf("duplicate CLI command field name after normalization: %s", fieldName)
		}
		usedNames[fieldName] = struct{}{}

		var fieldValue reflect.Value
		if len(child.children) == 0 {
			fieldValue = reflect.ValueOf(child.handler)
		} else {
			val, err := buildStructForNode(child)
			if err != nil {
				return reflect.Value{}, err
			}
			fieldValue = val
		}

		fields = append(fields, reflect.StructField{
			Name: fieldName,
			Type: fieldValue.Type(),
			Tag:  buildStructTag(child),
		})
		values = append(values, fieldValue)
	}

	structVal := reflect.New(reflect.StructOf(fields)).Elem()
	for idx, val := range values {
		structVal.Field(idx).Set(val)
	}
	return structVal, nil
}

func buildStructTag(node *cliNode) reflect.StructTag {
	tags := []string{
		fmt.Sprintf(`name:"%s"`, escapeTag(node.name)),
		`cmd:""`,
	}
	if node.help != "" {
		tags = append(tags, fmt.Sprintf(`help:"%s"`, escapeTag(node.help)))
	}
	return reflect.StructTag(strings.Join(tags, " "))
}

func exportFieldName(name string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	out := b.String()
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "Cmd" + out
	}
	return out
}

func escapeTag(val string) string {
	val = strings.ReplaceAll(val, `\`, `\\`)
	val = strings.ReplaceAll(val, `"`, `\"`)
	return val
}

func buildCLIOptions(root *cliNode) ([]kong.Option, error) {
	if len(root.children) == 0 {
		return nil, nil
	}
	model, err := buildStructForNode(root)
	if err != nil {
		return nil, err
	}
	return []kong.Option{kong.Embed(model.Addr().Interface())}, nil
}
