package resolver

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmetrics/internal/strategy"
)

// Mode restricts which strategies a resolution may use.
type Mode string

const (
	ModeAuto               Mode = "auto"
	ModeStructuredOnly     Mode = "structured-only"
	ModeSemiStructuredOnly Mode = "semi-structured-only"
	ModeRenderedOnly       Mode = "rendered-only"
)

// ParseMode validates a mode name. An empty string is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeStructuredOnly, ModeSemiStructuredOnly, ModeRenderedOnly:
		return m, nil
	default:
		return "", eris.Errorf("resolver: unknown mode %q", s)
	}
}

// allows reports whether the strategy named name may run under m.
func (m Mode) allows(name string) bool {
	switch m {
	case ModeStructuredOnly:
		return name == strategy.NameStructured
	case ModeSemiStructuredOnly:
		return name == strategy.NameSemiStructured
	case ModeRenderedOnly:
		return name == strategy.NameRendered
	default:
		return true
	}
}
