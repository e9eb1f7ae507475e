// Package persona decorates generated replies with a configurable
// personality archetype.
package persona

// Archetype bundles the traits and stock phrases of one personality.
type Archetype struct {
	Traits  []string
	Phrases []string
}

// Archetypes are the built-in personalities.
var Archetypes = map[string]Archetype{
	"neutral": {},
	"scientist": {
		Traits:  []string{"analytical", "curious"},
		Phrases: []string{"By my calculations...", "That is interesting from a scientific standpoint..."},
	},
	"artist": {
		Traits:  []string{"creative", "emotional"},
		Phrases: []string{"I feel that...", "How inspiring!"},
	},
}

// Persona is the active personality plus any custom traits.
type Persona struct {
	current      Archetype
	customTraits []string
}

// New creates a Persona with the neutral archetype.
func New() *Persona {
	return &Persona{current: Archetypes["neutral"]}
}

// SetArchetype switches to a named archetype; unknown names fall back
// to neutral.
func (p *Persona) SetArchetype(name string) {
	archetype, ok := Archetypes[name]
	if !ok {
		archetype = Archetypes["neutral"]
	}
	p.current = archetype
}

// AddTrait records an additional custom trait.
func (p *Persona) AddTrait(trait string) {
	p.customTraits = append(p.customTraits, trait)
}

// Traits returns the active traits, archetype traits first.
func (p *Persona) Traits() []string {
	return append(append([]string{}, p.current.Traits...), p.customTraits...)
}

// FormatResponse decorates a reply according to the active traits.
func (p *Persona) FormatResponse(message string) string {
	for _, trait := range p.Traits() {
		if trait == "analytical" {
			return "🤔 " + message
		}
	}
	return message
}
