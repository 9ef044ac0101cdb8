package pos

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
)

// decodeRows turns a raw response body into report rows. The API answers
// with JSON or XML depending on installation; the Content-Type header
// decides, falling back to sniffing the first non-whitespace byte. An
// unrecognized shape yields no rows rather than an error.
func decodeRows(contentType string, body []byte, xmlTags, jsonKeys []string) []Row {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "xml") || trimmed[0] == '<':
		return decodeXMLRows(trimmed, xmlTags)
	case strings.Contains(ct, "json") || trimmed[0] == '{' || trimmed[0] == '[':
		return decodeJSONRows(trimmed, jsonKeys)
	default:
		// Unknown content type: JSON is the common case.
		return decodeJSONRows(trimmed, jsonKeys)
	}
}

func decodeJSONRows(body []byte, envelopeKeys []string) []Row {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	switch v := parsed.(type) {
	case []any:
		return anySliceToRows(v)
	case map[string]any:
		for _, key := range envelopeKeys {
			if inner, ok := v[key].([]any); ok {
				// A present envelope decides the shape even when its list
				// is empty; the dict itself is never a row then.
				return anySliceToRows(inner)
			}
		}
		if len(v) > 0 {
			return []Row{Row(v)}
		}
	}
	return nil
}

func anySliceToRows(items []any) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok && len(m) > 0 {
			rows = append(rows, Row(m))
		}
	}
	return rows
}

// xmlNode is a generic element tree; the report schemas are not stable
// enough to model with static structs.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// decodeXMLRows finds row elements by trying tag candidates in order and
// flattens one level of child elements into field->text mappings.
func decodeXMLRows(body []byte, tagCandidates []string) []Row {
	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil
	}
	var items []xmlNode
	for _, tag := range tagCandidates {
		items = findAll(root, tag)
		if len(items) > 0 {
			break
		}
	}
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		row := flattenNode(item)
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

func findAll(node xmlNode, tag string) []xmlNode {
	var found []xmlNode
	for _, child := range node.Nodes {
		if child.XMLName.Local == tag {
			found = append(found, child)
			continue
		}
		found = append(found, findAll(child, tag)...)
	}
	return found
}

func flattenNode(node xmlNode) Row {
	row := Row{}
	for _, attr := range node.Attrs {
		row[attr.Name.Local] = attr.Value
	}
	for _, child := range node.Nodes {
		text := strings.TrimSpace(child.Text)
		if text == "" && len(child.Nodes) > 0 {
			// Nested structures are not report fields; skip them.
			continue
		}
		row[child.XMLName.Local] = text
	}
	return row
}
