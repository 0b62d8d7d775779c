package process

import (
	"fmt"
	"sort"
	"strings"
)

// Guard is evaluated against the live process before a hook body runs.
type Guard func(p *Process) bool

// GuardRegistry stores named predicates such as "user_created?".
// It is filled while a definition is built and read-only afterwards.
type GuardRegistry struct {
	guards map[string]Guard
}

// NewGuardRegistry returns a registry holding the built-in predicates:
// success?, failure?, output?, invalid_input? and invalid_dependencies?.
func NewGuardRegistry() *GuardRegistry {
	g := &GuardRegistry{guards: make(map[string]Guard)}
	g.guards["success?"] = func(p *Process) bool { return p.IsSuccess() }
	g.guards["failure?"] = func(p *Process) bool { return p.IsFailure() }
	g.guards["output?"] = func(p *Process) bool { return p.HasOutput() }
	g.guards[predicateName(TypeInvalidInput)] = outcomeGuard(TypeInvalidInput)
	g.guards[predicateName(TypeInvalidDependencies)] = outcomeGuard(TypeInvalidDependencies)
	return g
}

// Register stores a guard by name. Names end with "?" by convention; a
// missing suffix is added.
func (g *GuardRegistry) Register(name string, guard Guard) error {
	name = predicateName(name)
	if name == "?" || guard == nil {
		return fmt.Errorf("guard name and function are required")
	}
	if _, exists := g.guards[name]; exists {
		return fmt.Errorf("guard %s already registered", name)
	}
	g.guards[name] = guard
	return nil
}

// RegisterOutcome declares an outcome type and its "<type>?" predicate.
// Declaring the same type twice is a no-op.
func (g *GuardRegistry) RegisterOutcome(typ string) {
	name := predicateName(typ)
	if _, exists := g.guards[name]; exists {
		return
	}
	g.guards[name] = outcomeGuard(strings.TrimSuffix(name, "?"))
}

// Lookup retrieves a guard by name.
func (g *GuardRegistry) Lookup(name string) (Guard, bool) {
	if g == nil {
		return nil, false
	}
	fn, ok := g.guards[predicateName(name)]
	return fn, ok
}

// Names lists the registered predicates, sorted.
func (g *GuardRegistry) Names() []string {
	names := make([]string, 0, len(g.guards))
	for name := range g.guards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func outcomeGuard(typ string) Guard {
	return func(p *Process) bool {
		out, ok := p.Output()
		return ok && out.Is(typ)
	}
}

func predicateName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, "?") {
		return name
	}
	return name + "?"
}
