package parser

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/xjson"
)

// ParseYAML decodes a YAML workflow document. The document is normalized
// to JSON first, so validation and Workflow.Raw are identical to Parse.
func ParseYAML(data []byte) (*core.Workflow, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fail(core.CodeMalformedYAML, "", "malformed YAML: %v", err)
	}
	normalized, err := normalizeYAML(doc, "")
	if err != nil {
		return nil, err
	}
	jsonData, err := xjson.Marshal(normalized)
	if err != nil {
		return nil, fail(core.CodeMalformedYAML, "", "cannot convert YAML to JSON: %v", err)
	}
	return Parse(jsonData)
}

// normalizeYAML rewrites map[interface{}]interface{} nodes, which JSON
// cannot encode, into string-keyed maps.
func normalizeYAML(v interface{}, ptr string) (interface{}, error) {
	switch n := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, child := range n {
			c, err := normalizeYAML(child, ptr+"/"+escape(k))
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(n))
		for k, child := range n {
			key, ok := k.(string)
			if !ok {
				return nil, fail(core.CodeMalformedYAML, ptr, "mapping keys must be strings")
			}
			c, err := normalizeYAML(child, ptr+"/"+escape(key))
			if err != nil {
				return nil, err
			}
			out[key] = c
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, child := range n {
			c, err := normalizeYAML(child, ptr+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}
