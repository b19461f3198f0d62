package database

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// splitPath turns "/posts/abc/" into ["posts" "abc"]
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	segments := parts[:0]
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

func joinPath(segments ...string) string {
	var parts []string
	for _, s := range segments {
		parts = append(parts, splitPath(s)...)
	}
	return strings.Join(parts, "/")
}

func lastSegment(p string) string {
	segments := splitPath(p)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// decodeJSON decodes a database value keeping numbers exact
func decodeJSON(data []byte) (interface{}, error) {
	var v interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// childAt returns the subtree at segments, or nil
func childAt(tree interface{}, segments []string) interface{} {
	node := tree
	for _, segment := range segments {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = m[segment]
	}
	return node
}

// setAt returns a copy of tree with the subtree at segments replaced by value.
// Maps on the path are copied, the rest is shared. A nil value deletes, and
// parents left empty disappear.
func setAt(tree interface{}, segments []string, value interface{}) interface{} {
	if len(segments) == 0 {
		return prune(value)
	}

	node, _ := tree.(map[string]interface{})
	copied := make(map[string]interface{}, len(node)+1)
	for k, v := range node {
		copied[k] = v
	}

	child := setAt(copied[segments[0]], segments[1:], value)
	if child == nil {
		delete(copied, segments[0])
	} else {
		copied[segments[0]] = child
	}

	if len(copied) == 0 {
		return nil
	}
	return copied
}

// prune drops null children and empty maps
func prune(value interface{}) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if v = prune(v); v != nil {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func children(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// diffChildren compares the direct children of two versions of a node and
// returns removals first, then additions and changes, each in key order
func diffChildren(before, after interface{}) []Event {
	oldChildren := children(before)
	newChildren := children(after)

	var removed, touched []string
	for key := range oldChildren {
		if _, ok := newChildren[key]; !ok {
			removed = append(removed, key)
		}
	}
	for key, value := range newChildren {
		if old, ok := oldChildren[key]; !ok || !reflect.DeepEqual(old, value) {
			touched = append(touched, key)
		}
	}
	sort.Strings(removed)
	sort.Strings(touched)

	events := make([]Event, 0, len(removed)+len(touched))
	for _, key := range removed {
		events = append(events, Event{Kind: EventChildRemoved, Key: key, Snapshot: Snapshot{key: key, value: oldChildren[key]}})
	}
	for _, key := range touched {
		kind := EventChildChanged
		if _, existed := oldChildren[key]; !existed {
			kind = EventChildAdded
		}
		events = append(events, Event{Kind: kind, Key: key, Snapshot: Snapshot{key: key, value: newChildren[key]}})
	}
	return events
}
