// Package layer encodes Jin's nine-variant precedence lattice and the
// rules that map a (Layer, Context) pair to a reference path in the
// object store. The variant set and the factory/strategy shape follow
// the vcs.Type enum in internal/vcs/vcs.go, generalized from three
// values to nine.
package layer

import (
	"sort"
	"strings"

	"github.com/dabstractor/jin-sub008/internal/jinerr"
)

// Layer is one of the nine precedence tiers in Jin's layering model.
type Layer int

const (
	GlobalBase Layer = iota + 1
	ModeBase
	ModeScope
	ModeScopeProject
	ModeProject
	ScopeBase
	ProjectBase
	UserLocal
	WorkspaceActive
)

// All lists every layer variant in ascending precedence order.
var All = []Layer{
	GlobalBase, ModeBase, ModeScope, ModeScopeProject, ModeProject,
	ScopeBase, ProjectBase, UserLocal, WorkspaceActive,
}

func (l Layer) String() string {
	switch l {
	case GlobalBase:
		return "GlobalBase"
	case ModeBase:
		return "ModeBase"
	case ModeScope:
		return "ModeScope"
	case ModeScopeProject:
		return "ModeScopeProject"
	case ModeProject:
		return "ModeProject"
	case ScopeBase:
		return "ScopeBase"
	case ProjectBase:
		return "ProjectBase"
	case UserLocal:
		return "UserLocal"
	case WorkspaceActive:
		return "WorkspaceActive"
	default:
		return "Invalid"
	}
}

// RequiredContext names which of mode/scope/project a layer needs to
// compute a reference path.
type RequiredContext struct {
	Mode    bool
	Scope   bool
	Project bool
}

// RequiredContext returns which context components this layer needs.
func (l Layer) RequiredContext() RequiredContext {
	switch l {
	case GlobalBase, UserLocal, WorkspaceActive:
		return RequiredContext{}
	case ModeBase:
		return RequiredContext{Mode: true}
	case ModeScope:
		return RequiredContext{Mode: true, Scope: true}
	case ModeScopeProject:
		return RequiredContext{Mode: true, Scope: true, Project: true}
	case ModeProject:
		return RequiredContext{Mode: true, Project: true}
	case ScopeBase:
		return RequiredContext{Scope: true}
	case ProjectBase:
		return RequiredContext{Project: true}
	default:
		return RequiredContext{}
	}
}

// PrecedenceIndex returns the 1..=9 precedence rank; higher overrides lower.
func PrecedenceIndex(l Layer) int {
	for i, candidate := range All {
		if candidate == l {
			return i + 1
		}
	}
	return 0
}

// ByPrecedence sorts layers ascending by precedence (lowest first),
// the order the apply pipeline composes contributions in.
func ByPrecedence(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	copy(out, layers)
	sort.Slice(out, func(i, j int) bool {
		return PrecedenceIndex(out[i]) < PrecedenceIndex(out[j])
	})
	return out
}

// refSentinel is the fixed trailing segment that keeps layer references
// from colliding with user-created references.
const refSentinel = "_"

// refRoot is the reference namespace root all layer refs live under.
const refRoot = "refs/jin/layers"

// RefRoot is the reference namespace root all layer refs live under,
// exported for callers (repair, remote) that need to enumerate every
// layer ref rather than compute one for a known Layer/Context.
const RefRoot = refRoot

// sanitizeSegment replaces characters invalid in the object-store
// reference namespace, notably ':', with '/', and rejects empty or
// dot-prefixed segments.
func sanitizeSegment(s string) (string, error) {
	if s == "" {
		return "", jinerr.New(jinerr.KindInvalidLayer, "layer.sanitizeSegment", s)
	}
	if strings.HasPrefix(s, ".") {
		return "", jinerr.New(jinerr.KindInvalidLayer, "layer.sanitizeSegment", s)
	}
	return strings.ReplaceAll(s, ":", "/"), nil
}

// RefPath computes the deterministic reference path for this layer
// given the supplied context components. Returns MissingContext if a
// required component is absent.
func (l Layer) RefPath(mode, scope, project string) (string, error) {
	req := l.RequiredContext()
	if req.Mode && mode == "" {
		return "", jinerr.New(jinerr.KindMissingContext, "layer.RefPath", "mode")
	}
	if req.Scope && scope == "" {
		return "", jinerr.New(jinerr.KindMissingContext, "layer.RefPath", "scope")
	}
	if req.Project && project == "" {
		return "", jinerr.New(jinerr.KindMissingContext, "layer.RefPath", "project")
	}
	if req.Mode && strings.HasPrefix(mode, ".") {
		return "", jinerr.New(jinerr.KindInvalidLayer, "layer.RefPath", mode)
	}
	if req.Project && strings.HasPrefix(project, ".") {
		return "", jinerr.New(jinerr.KindInvalidLayer, "layer.RefPath", project)
	}

	segs := []string{refRoot}
	switch l {
	case GlobalBase:
		segs = append(segs, "global")
	case ModeBase:
		segs = append(segs, "mode", mode)
	case ModeScope:
		sanScope, err := sanitizeSegment(scope)
		if err != nil {
			return "", err
		}
		segs = append(segs, "mode", mode, "scope", sanScope)
	case ModeScopeProject:
		sanScope, err := sanitizeSegment(scope)
		if err != nil {
			return "", err
		}
		segs = append(segs, "mode", mode, "scope", sanScope, "project", project)
	case ModeProject:
		segs = append(segs, "mode", mode, "project", project)
	case ScopeBase:
		sanScope, err := sanitizeSegment(scope)
		if err != nil {
			return "", err
		}
		segs = append(segs, "scope", sanScope)
	case ProjectBase:
		segs = append(segs, "project", project)
	case UserLocal:
		segs = append(segs, "local")
	case WorkspaceActive:
		segs = append(segs, "workspace")
	default:
		return "", jinerr.New(jinerr.KindInvalidLayer, "layer.RefPath", l.String())
	}
	segs = append(segs, refSentinel)
	return strings.Join(segs, "/"), nil
}

// StoragePath returns the tree-internal storage path for layer content,
// distinct from the reference path. Jin stores every layer's files at
// the root of its own tree, so this currently mirrors the empty prefix;
// kept as a distinct function because the on-disk layout and the ref
// namespace are independent concerns that may diverge in the future.
func (l Layer) StoragePath(mode, scope, project string) (string, error) {
	if _, err := l.RefPath(mode, scope, project); err != nil {
		return "", err
	}
	return "", nil
}

// ParseRefPath is the inverse of RefPath: given a full ref path, find
// the Layer variant it belongs to and extract its context. It is used
// by jinmap regeneration and repair, which only have ref paths to work
// with, not the originating Layer.
func ParseRefPath(ref string) (l Layer, mode, scope, project string, ok bool) {
	if !strings.HasPrefix(ref, refRoot+"/") || !strings.HasSuffix(ref, "/"+refSentinel) {
		return 0, "", "", "", false
	}
	body := strings.TrimSuffix(strings.TrimPrefix(ref, refRoot+"/"), "/"+refSentinel)
	parts := strings.Split(body, "/")

	switch {
	case len(parts) == 1 && parts[0] == "global":
		return GlobalBase, "", "", "", true
	case len(parts) == 1 && parts[0] == "local":
		return UserLocal, "", "", "", true
	case len(parts) == 1 && parts[0] == "workspace":
		return WorkspaceActive, "", "", "", true
	case len(parts) == 2 && parts[0] == "project":
		return ProjectBase, "", "", parts[1], true
	case len(parts) >= 2 && parts[0] == "scope":
		return ScopeBase, "", strings.Join(parts[1:], ":"), "", true
	case len(parts) == 2 && parts[0] == "mode":
		return ModeBase, parts[1], "", "", true
	case len(parts) == 4 && parts[0] == "mode" && parts[2] == "project":
		return ModeProject, parts[1], "", parts[3], true
	case len(parts) >= 4 && parts[0] == "mode" && parts[2] == "scope":
		// Everything after "scope" up to an optional trailing
		// "project/<name>" pair belongs to the scope value.
		rest := parts[3:]
		if len(rest) >= 2 && rest[len(rest)-2] == "project" {
			scopeSegs := rest[:len(rest)-2]
			return ModeScopeProject, parts[1], strings.Join(scopeSegs, ":"), rest[len(rest)-1], true
		}
		return ModeScope, parts[1], strings.Join(rest, ":"), "", true
	}
	return 0, "", "", "", false
}
