package runtime

import "github.com/aretw0/detailtree/pkg/domain"

// initialExpansion decides the state of a row with a child template from the dry-run
// result of that template.
//
//	Nothing   -> Fixed
//	Possible  -> CollapsedEmpty
//	Something -> Collapsed if reused while Collapsed, else Expanded if auto-expanding
//	             or reused while Expanded, else Collapsed
func initialExpansion(p domain.Presence, reused bool, prev domain.ExpansionState, auto bool) domain.ExpansionState {
	switch p {
	case domain.Nothing:
		return domain.Fixed
	case domain.Possible:
		return domain.CollapsedEmpty
	}
	if reused && prev == domain.Collapsed {
		return domain.Collapsed
	}
	if auto || (reused && prev == domain.Expanded) {
		return domain.Expanded
	}
	return domain.Collapsed
}

// autoExpand applies a node's expansion policy over the engine default.
func autoExpand(n *domain.TemplateNode, def bool) bool {
	switch n.Expansion {
	case domain.ExpansionExpanded:
		return true
	case domain.ExpansionCollapsed:
		return false
	default:
		return def
	}
}

// Toggle returns the state a user toggle moves a row to. Fixed rows cannot be
// toggled; CollapsedEmpty rows ignore toggles until a rebuild promotes them.
func Toggle(s domain.ExpansionState) (domain.ExpansionState, error) {
	switch s {
	case domain.Collapsed:
		return domain.Expanded, nil
	case domain.Expanded:
		return domain.Collapsed, nil
	case domain.CollapsedEmpty:
		return s, nil
	default:
		return s, domain.ErrNotExpandable
	}
}
