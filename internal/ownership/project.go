package ownership

// Projector maps a resource to its public representation, varying by whether
// the viewer owns it. Fields shown to non-owners come only from the Public
// allow-list; nothing else can leak by omission.
type Projector[T Owned] struct {
	// Public builds the representation every permitted viewer gets.
	Public func(res T) map[string]any

	// OwnerOnly contributes extra fields when the viewer is the owner.
	// Optional.
	OwnerOnly func(res T) map[string]any
}

// Project is pure: same resource + viewer, same output.
func (p Projector[T]) Project(res T, viewer *Viewer) map[string]any {
	out := map[string]any{}
	if p.Public != nil {
		for k, v := range p.Public(res) {
			out[k] = v
		}
	}
	isOwner := viewer != nil && viewer.ID == res.OwnerID()
	if isOwner && p.OwnerOnly != nil {
		for k, v := range p.OwnerOnly(res) {
			out[k] = v
		}
	}
	out["is_owner"] = isOwner
	return out
}

// ProjectAll projects a slice (list endpoints).
func (p Projector[T]) ProjectAll(items []T, viewer *Viewer) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, p.Project(it, viewer))
	}
	return out
}
