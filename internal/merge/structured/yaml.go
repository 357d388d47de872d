package structured

import (
	"github.com/dabstractor/jin-sub008/internal/jinerr"
	"gopkg.in/yaml.v3"
)

// mergeYAML merges contributions left to right on the yaml.Node tree
// rather than a generic interface{} tree, so that comments and key
// ordering in surviving nodes are preserved, yaml.v3's Node API
// (gopkg.in/yaml.v3) exposes exactly this Node API.
func mergeYAML(contributions [][]byte) ([]byte, error) {
	var acc *yaml.Node

	for _, raw := range contributions {
		var doc yaml.Node
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, jinerr.Wrap(jinerr.KindParseError, "structured.mergeYAML", "", err)
		}
		if len(doc.Content) == 0 {
			continue // empty document contributes nothing
		}
		root := doc.Content[0]
		if acc == nil {
			acc = root
		} else {
			acc = mergeYAMLNodes(acc, root)
		}
	}

	if acc == nil {
		acc = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}

	out, err := yaml.Marshal(acc)
	if err != nil {
		return nil, jinerr.Wrap(jinerr.KindIO, "structured.mergeYAML", "", err)
	}
	return out, nil
}

func mergeYAMLNodes(base, overlay *yaml.Node) *yaml.Node {
	if overlay == nil {
		return base
	}
	if base.Kind == yaml.MappingNode && overlay.Kind == yaml.MappingNode {
		return mergeYAMLMappings(base, overlay)
	}
	if base.Kind == yaml.SequenceNode && overlay.Kind == yaml.SequenceNode {
		return mergeYAMLSequences(base, overlay)
	}
	// Scalar replace, or a type mismatch: overlay wins outright.
	return overlay
}

func mergeYAMLMappings(base, overlay *yaml.Node) *yaml.Node {
	overlayPairs := make(map[string]*yaml.Node, len(overlay.Content)/2)
	var overlayOnlyKeys []string
	overlayKeyNodes := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(overlay.Content); i += 2 {
		k, v := overlay.Content[i], overlay.Content[i+1]
		overlayPairs[k.Value] = v
		overlayKeyNodes[k.Value] = k
	}

	out := &yaml.Node{
		Kind:        base.Kind,
		Style:       base.Style,
		Tag:         base.Tag,
		HeadComment: base.HeadComment,
		LineComment: base.LineComment,
		FootComment: base.FootComment,
	}

	seen := make(map[string]bool)
	for i := 0; i+1 < len(base.Content); i += 2 {
		keyNode, valNode := base.Content[i], base.Content[i+1]
		seen[keyNode.Value] = true
		if overlayVal, ok := overlayPairs[keyNode.Value]; ok {
			merged := mergeYAMLNodes(valNode, overlayVal)
			out.Content = append(out.Content, keyNode, merged)
		} else {
			out.Content = append(out.Content, keyNode, valNode)
		}
	}

	for i := 0; i+1 < len(overlay.Content); i += 2 {
		k := overlay.Content[i]
		if seen[k.Value] {
			continue
		}
		overlayOnlyKeys = append(overlayOnlyKeys, k.Value)
	}
	for _, k := range overlayOnlyKeys {
		out.Content = append(out.Content, overlayKeyNodes[k], overlayPairs[k])
	}

	return out
}

// mergeYAMLSequences applies the same keyed-array-or-replace rule as
// the generic engine, decoding to plain values (losing per-element
// comments, which yaml.v3 itself cannot attach to array members
// independent of position) and re-encoding the result.
func mergeYAMLSequences(base, overlay *yaml.Node) *yaml.Node {
	var baseVal, overlayVal []interface{}
	_ = base.Decode(&baseVal)
	_ = overlay.Decode(&overlayVal)

	baseIface := make([]interface{}, len(baseVal))
	copy(baseIface, baseVal)
	overlayIface := make([]interface{}, len(overlayVal))
	copy(overlayIface, overlayVal)

	merged := mergeArrays(baseIface, overlayIface)

	var out yaml.Node
	_ = out.Encode(merged)
	out.Style = base.Style
	return &out
}
