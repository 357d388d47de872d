package layer

// Context selects which layers are active: {mode?, scope?, project?}.
// Scope values use "category:value" form (e.g. "language:javascript");
// the colon is preserved here and only sanitized at RefPath time.
type Context struct {
	Mode    string `yaml:"mode,omitempty" json:"mode,omitempty"`
	Scope   string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Project string `yaml:"project,omitempty" json:"project,omitempty"`
}

// ApplicableLayers returns every layer whose required context is
// satisfied by c, in ascending precedence order (lowest first):
// exactly the order the apply pipeline must compose contributions in.
func (c Context) ApplicableLayers() []Layer {
	var out []Layer
	for _, l := range All {
		if l == WorkspaceActive {
			// The workspace is the apply destination, never a
			// contributing layer in its own composition.
			continue
		}
		req := l.RequiredContext()
		if req.Mode && c.Mode == "" {
			continue
		}
		if req.Scope && c.Scope == "" {
			continue
		}
		if req.Project && c.Project == "" {
			continue
		}
		out = append(out, l)
	}
	return ByPrecedence(out)
}

// RefPath is a convenience wrapper around Layer.RefPath using this
// context's fields.
func (c Context) RefPath(l Layer) (string, error) {
	return l.RefPath(c.Mode, c.Scope, c.Project)
}
