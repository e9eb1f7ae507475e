package persona

import "testing"

func TestUnknownArchetypeFallsBackToNeutral(t *testing.T) {
	p := New()
	p.SetArchetype("astronaut")
	if got := p.FormatResponse("hello"); got != "hello" {
		t.Errorf("Neutral persona must not decorate, got %q", got)
	}
}

func TestAnalyticalTraitDecorates(t *testing.T) {
	p := New()
	p.SetArchetype("scientist")
	if got := p.FormatResponse("hello"); got != "🤔 hello" {
		t.Errorf("Unexpected decoration: %q", got)
	}
}

func TestCustomTraits(t *testing.T) {
	p := New()
	p.AddTrait("analytical")
	if got := p.FormatResponse("hi"); got != "🤔 hi" {
		t.Errorf("Custom trait not applied: %q", got)
	}
	if len(p.Traits()) != 1 {
		t.Errorf("Expected 1 trait, got %d", len(p.Traits()))
	}
}
