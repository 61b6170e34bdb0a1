package core

// normalize.go converts a raw table export into SyncRecords.
//
// The export is first sanitized, then scanned leniently for record elements.
// Each record is re-parsed on its own, so one broken record only costs that
// record. Conversion rules:
//
//   - Record elements are matched by tag at the shallowest depth; nested
//     elements with the same tag are part of the enclosing record.
//   - Attributes of elements that have children become fields. A child
//     element with the same name wins over the attribute.
//   - Attributes of leaf elements are dropped.
//   - Leaf text is coerced with CoerceLeaf; empty leaves are omitted.
//   - Repeated sibling elements collapse into an Array in source order.

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Identity fields, in priority order.
const (
	fieldGUID          = "GUID"
	fieldMasterID      = "MASTERID"
	fieldName          = "NAME"
	fieldVoucherType   = "VOUCHERTYPENAME"
	fieldVoucherNumber = "VOUCHERNUMBER"
)

// modifiedFields are checked in order for a last-modified timestamp.
var modifiedFields = []string{"ALTEREDON", "LASTMODIFIED", "UPDATEDDATETIME"}

// NormalizeResult is the outcome of normalizing one export.
type NormalizeResult struct {
	Records    []SyncRecord
	Skipped    []*RecordError
	Duplicates int
}

// Normalize parses raw into records for def. It never fails as a whole;
// records that cannot be parsed are reported in Skipped.
func Normalize(raw []byte, def TableDefinition) *NormalizeResult {
	res := &NormalizeResult{}
	clean := SanitizeXML(raw)

	fragments, scanErr := splitRecords(clean, def.Info.RecordTag)

	seen := make(map[string]int)
	for i, frag := range fragments {
		rec, err := buildRecord(frag, def)
		if err != nil {
			res.Skipped = append(res.Skipped, &RecordError{Table: def.Info.Key, Index: i, Err: err})
			continue
		}
		if pos, dup := seen[rec.ID]; dup {
			res.Records[pos] = rec
			res.Duplicates++
			continue
		}
		seen[rec.ID] = len(res.Records)
		res.Records = append(res.Records, rec)
	}

	if scanErr != nil {
		res.Skipped = append(res.Skipped, &RecordError{Table: def.Info.Key, Index: len(fragments), Err: scanErr})
	}
	return res
}

// splitRecords returns the byte ranges of every shallowest element named tag.
// Scanning uses raw tokens and counts depth itself, so a record with
// mismatched end tags is still cut out whole and fails on its own later.
// A scan error ends the scan and is returned with the fragments found so far.
func splitRecords(data []byte, tag string) ([][]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		out   [][]byte
		start int64
		depth int
	)
	for {
		offset := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			if depth > 0 {
				return out, fmt.Errorf("export ended inside %s record at offset %d", tag, start)
			}
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("scan export at offset %d: %w", offset, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
			} else if strings.EqualFold(t.Name.Local, tag) {
				start = offset
				depth = 1
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, data[start:dec.InputOffset()])
			}
		}
	}
}

// node is a parsed element.
type node struct {
	name     string
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
}

// parseNode strictly parses a single record fragment.
func parseNode(frag []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(frag))
	dec.Entity = xml.HTMLEntity

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("no element")
	}
	return root, nil
}

// objectOf builds the object form of an element: attributes plus children.
func objectOf(n *node) *Object {
	obj := NewObject()
	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		obj.Set(a.Name.Local, CoerceLeaf(a.Value))
	}

	var order []string
	groups := make(map[string][]Value)
	for _, c := range n.children {
		v := valueOf(c)
		if v == nil {
			continue
		}
		if _, ok := groups[c.name]; !ok {
			order = append(order, c.name)
		}
		groups[c.name] = append(groups[c.name], v)
	}
	for _, name := range order {
		vals := groups[name]
		if len(vals) == 1 {
			obj.Set(name, vals[0])
		} else {
			obj.Set(name, Array(vals))
		}
	}
	return obj
}

// valueOf converts a child element. Returns nil when the element carries no data.
func valueOf(n *node) Value {
	if len(n.children) == 0 {
		return CoerceLeaf(n.text.String())
	}
	obj := objectOf(n)
	if obj.Len() == 0 {
		return nil
	}
	return obj
}

func buildRecord(frag []byte, def TableDefinition) (SyncRecord, error) {
	root, err := parseNode(frag)
	if err != nil {
		return SyncRecord{}, fmt.Errorf("parse record: %w", err)
	}

	data := objectOf(root)
	if data.Len() == 0 {
		return SyncRecord{}, errors.New("record has no fields")
	}

	digest, err := Digest(data)
	if err != nil {
		return SyncRecord{}, fmt.Errorf("digest record: %w", err)
	}

	return SyncRecord{
		ID:         recordID(def, root, frag),
		Data:       data,
		Digest:     digest,
		ModifiedAt: modifiedAt(root),
		Operation:  OpInsert,
	}, nil
}

// recordID derives a stable identity for a record from the source text of
// its fields, never from coerced values.
// Order: GUID, master id, table:name, table:type:number for transactional
// tables, then table:hash of the raw fragment.
func recordID(def TableDefinition, root *node, raw []byte) string {
	if id := root.field(fieldGUID); id != "" {
		return id
	}
	if id := root.field(fieldMasterID); id != "" {
		return id
	}
	if name := root.field(fieldName); name != "" {
		return def.Info.Key + ":" + name
	}
	if def.Transactional {
		vt, vn := root.field(fieldVoucherType), root.field(fieldVoucherNumber)
		if vt != "" && vn != "" {
			return def.Info.Key + ":" + vt + ":" + vn
		}
	}
	return def.Info.Key + ":" + shortHash(raw)
}

// field returns the trimmed source text of the first non-empty leaf child
// named key, falling back to an attribute of n. A child wins over an
// attribute, matching objectOf.
func (n *node) field(key string) string {
	for _, c := range n.children {
		if c.name != key || len(c.children) > 0 {
			continue
		}
		if text := strings.TrimSpace(c.text.String()); text != "" {
			return text
		}
	}
	for _, a := range n.attrs {
		if a.Name.Local == key {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func modifiedAt(root *node) *time.Time {
	for _, key := range modifiedFields {
		if t, ok := ParseTimestamp(root.field(key)); ok {
			return &t
		}
	}
	return nil
}
