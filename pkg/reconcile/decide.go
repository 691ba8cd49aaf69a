package reconcile

// Decide maps one resource's observation to an action. It is a pure function
// and applies the same policy to every resource kind:
//
//   - matching state without force is a skip, so a run can repeat any number
//     of times with no cumulative side effect;
//   - force re-applies regardless of matching state, and only ever touches
//     the managed resource itself;
//   - absent or mismatched state gets the kind's apply action.
//
// Artifacts follow the overwrite policy: an existing file is never clobbered
// without force, even when its content differs from what would be rendered.
func Decide(kind Kind, observed State, force bool) Action {
	if kind == KindArtifact {
		if observed == StateAbsent || force {
			return ActionWriteFile
		}
		return ActionSkip
	}

	switch observed {
	case StatePresentMatching:
		if !force {
			return ActionSkip
		}
		return reapplyAction(kind)
	case StatePresentMismatched:
		return reapplyAction(kind)
	default:
		return applyAction(kind)
	}
}

// applyAction is the action that brings an absent resource into existence.
func applyAction(kind Kind) Action {
	switch kind {
	case KindGroup:
		return ActionAddToGroup
	case KindArtifact:
		return ActionWriteFile
	default:
		return ActionInstall
	}
}

// reapplyAction is the action that re-applies a present resource. Group adds
// are additive and harmless to repeat, so they reuse the same action.
func reapplyAction(kind Kind) Action {
	switch kind {
	case KindGroup:
		return ActionAddToGroup
	case KindArtifact:
		return ActionWriteFile
	default:
		return ActionReinstall
	}
}
