package ontology

import (
	"strings"
)

// Kind is a relationship kind. Known kinds come from the registry tables below;
// anything else is carried as a Custom kind with the raw string preserved so
// that ingestion never fails on an unrecognized relation name.
type Kind struct {
	Name   string `json:"name"`
	Custom bool   `json:"custom,omitempty"`
}

func (k Kind) String() string {
	return k.Name
}

// Known kinds.
var (
	Loves         = Kind{Name: "LOVES"}
	Hates         = Kind{Name: "HATES"}
	Knows         = Kind{Name: "KNOWS"}
	Fears         = Kind{Name: "FEARS"}
	Helps         = Kind{Name: "HELPS"}
	Hinders       = Kind{Name: "HINDERS"}
	Conflict      = Kind{Name: "CONFLICT"}
	Obstacle      = Kind{Name: "OBSTACLE"}
	Foreshadows   = Kind{Name: "FORESHADOWS"}
	Callback      = Kind{Name: "CALLBACK"}
	Contradicts   = Kind{Name: "CONTRADICTS"}
	FlawChallenge = Kind{Name: "FLAW_CHALLENGE"}
	Resolves      = Kind{Name: "RESOLVES"}
	Causes        = Kind{Name: "CAUSES"}
	LocatedIn     = Kind{Name: "LOCATED_IN"}
	Possesses     = Kind{Name: "POSSESSES"}
	AppearsIn     = Kind{Name: "APPEARS_IN"}
	Introduces    = Kind{Name: "INTRODUCES"}
)

var known = []Kind{
	Loves, Hates, Knows, Fears, Helps, Hinders, Conflict, Obstacle,
	Foreshadows, Callback, Contradicts, FlawChallenge, Resolves, Causes,
	LocatedIn, Possesses, AppearsIn, Introduces,
}

// Extraction sources produce near-miss names for known kinds; the alias table
// absorbs the variants we have seen in practice.
var aliases = map[string]Kind{
	"BLOCKS":          Hinders,
	"PREVENTS":        Hinders,
	"OPPOSES":         Hinders,
	"IMPEDES":         Obstacle,
	"AIDS":            Helps,
	"ASSISTS":         Helps,
	"SUPPORTS":        Helps,
	"ADORES":          Loves,
	"DESPISES":        Hates,
	"LOATHES":         Hates,
	"DREADS":          Fears,
	"FIGHTS":          Conflict,
	"BATTLES":         Conflict,
	"CONFLICTS_WITH":  Conflict,
	"HINTS_AT":        Foreshadows,
	"FORESHADOWING":   Foreshadows,
	"ECHOES":          Callback,
	"REFERENCES":      Callback,
	"CONTRADICTION":   Contradicts,
	"CONTRADICTS_FACT": Contradicts,
	"TESTS_FLAW":      FlawChallenge,
	"CHALLENGES_FLAW": FlawChallenge,
	"CHALLENGES":      FlawChallenge,
	"SETTLES":         Resolves,
	"CONCLUDES":       Resolves,
	"LEADS_TO":        Causes,
	"TRIGGERS":        Causes,
	"RESULTS_IN":      Causes,
	"IN":              LocatedIn,
	"AT":              LocatedIn,
	"LIVES_IN":        LocatedIn,
	"OWNS":            Possesses,
	"HAS":             Possesses,
	"CARRIES":         Possesses,
	"MEETS":           Knows,
	"KNOWS_OF":        Knows,
}

var descriptions = map[string]string{
	Loves.Name:         "source character loves the target",
	Hates.Name:         "source character hates the target",
	Knows.Name:         "source character is acquainted with the target",
	Fears.Name:         "source character fears the target",
	Helps.Name:         "source actively aids the target",
	Hinders.Name:       "source actively works against the target",
	Conflict.Name:      "open conflict between source and target",
	Obstacle.Name:      "source stands as an obstacle before the target",
	Foreshadows.Name:   "source plants a hint that the target will pay off",
	Callback.Name:      "source pays off an earlier setup in the target",
	Contradicts.Name:   "source asserts a fact incompatible with the target",
	FlawChallenge.Name: "source confronts the target's character flaw",
	Resolves.Name:      "source resolves the tension carried by the target",
	Causes.Name:        "source causally leads to the target",
	LocatedIn.Name:     "source is located in the target",
	Possesses.Name:     "source possesses the target",
	AppearsIn.Name:     "source appears in the target scene or event",
	Introduces.Name:    "source introduces the target into the story",
}

// Kinds disabled by default are the ones that tend to flood the graph when an
// extraction source over-produces them.
var defaultEnabled = map[string]bool{
	Loves.Name:         true,
	Hates.Name:         true,
	Knows.Name:         false,
	Fears.Name:         true,
	Helps.Name:         true,
	Hinders.Name:       true,
	Conflict.Name:      true,
	Obstacle.Name:      true,
	Foreshadows.Name:   true,
	Callback.Name:      true,
	Contradicts.Name:   true,
	FlawChallenge.Name: true,
	Resolves.Name:      true,
	Causes.Name:        true,
	LocatedIn.Name:     true,
	Possesses.Name:     false,
	AppearsIn.Name:     false,
	Introduces.Name:    true,
}

// Registry resolves raw relation strings to Kinds and answers enablement and
// description queries. Construct once and share; it is immutable after New.
type Registry struct {
	byName  map[string]Kind
	enabled map[string]bool
}

// New builds a Registry. overrides maps kind names to enablement flags from
// configuration and wins over the hard-coded defaults; pass nil for defaults.
func New(overrides map[string]bool) *Registry {
	byName := make(map[string]Kind, len(known))
	for _, k := range known {
		byName[k.Name] = k
	}

	enabled := make(map[string]bool, len(defaultEnabled))
	for name, on := range defaultEnabled {
		enabled[name] = on
	}
	for name, on := range overrides {
		enabled[canonical(name)] = on
	}

	return &Registry{byName: byName, enabled: enabled}
}

func canonical(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// Normalize maps an arbitrary relation string to a Kind. It never fails:
// unknown strings come back as a Custom kind carrying the canonical form.
func (r *Registry) Normalize(raw string) Kind {
	s := canonical(raw)
	if s == "" {
		return Kind{Name: "UNSPECIFIED", Custom: true}
	}
	if k, ok := r.byName[s]; ok {
		return k
	}
	if k, ok := aliases[s]; ok {
		return k
	}
	return Kind{Name: s, Custom: true}
}

// Describe returns the fixed description for a known kind, empty for custom.
func (r *Registry) Describe(k Kind) string {
	return descriptions[k.Name]
}

// IsEnabled reports whether edges of this kind should be committed. Custom
// kinds are always enabled: dropping unknown-but-harmless facts silently is
// worse than carrying them.
func (r *Registry) IsEnabled(k Kind) bool {
	if k.Custom {
		return true
	}
	on, ok := r.enabled[k.Name]
	if !ok {
		return true
	}
	return on
}

// Known returns the closed kind set, in registry order.
func (r *Registry) Known() []Kind {
	out := make([]Kind, len(known))
	copy(out, known)
	return out
}
