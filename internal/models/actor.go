package models

import "fmt"

// Actor identifies a user-like participant in execution audit payloads,
// normalised from the loosely shaped owner metadata clients supply.
type Actor struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// NormalizeActor coerces a free-form actor value into an Actor. Mappings are
// probed for well-known id and label keys; scalars become both id and label;
// anything empty falls back to fallbackID.
func NormalizeActor(v any, fallbackID string) Actor {
	if m, ok := v.(map[string]any); ok {
		id := firstActorValue(m, "id", "userId", "username", "slug")
		if id == "" {
			id = fallbackID
		}
		label := firstActorValue(m, "label", "name", "displayName", "username")
		if label == "" {
			label = id
		}
		return Actor{ID: id, Label: label}
	}
	if s := actorString(v); s != "" {
		return Actor{ID: s, Label: s}
	}
	return Actor{ID: fallbackID, Label: fallbackID}
}

// OwnerFromMeta extracts an owner actor from pipeline or graph metadata. It
// probes the direct owner keys first, then the nested server.user shape.
func OwnerFromMeta(meta map[string]any, fallbackID string) (Actor, bool) {
	if len(meta) == 0 {
		return Actor{}, false
	}
	for _, key := range []string{"owner", "ownerId", "owner_id", "createdBy", "created_by"} {
		if v, ok := meta[key]; ok && !emptyActorValue(v) {
			return NormalizeActor(v, fallbackID), true
		}
	}
	if server, ok := meta["server"].(map[string]any); ok {
		if v, ok := server["user"]; ok && !emptyActorValue(v) {
			return NormalizeActor(v, fallbackID), true
		}
	}
	return Actor{}, false
}

func firstActorValue(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := actorString(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func actorString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", s)
	}
}

func emptyActorValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
