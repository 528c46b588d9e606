// Package serialization converts simulation objects to and from flat
// maps so they can cross rank boundaries and be written to checkpoints.
// Transport handles are never serialized; they are rebuilt on restart.
package serialization

// Serializable is an object that can be reduced to a flat map of fields
// and rebuilt from one. Values in the map must be basic types or
// themselves Serializable.
type Serializable interface {
	Serialize() (map[string]any, error)
	Deserialize(map[string]any) error
}
