package refs

import "fmt"

// InvalidSelectorError reports a membership operator whose value is neither
// a literal key list nor a nested filter query.
type InvalidSelectorError struct {
	// Collection owns the foreign key whose membership clause was invalid.
	Collection string

	// Path is the foreign-key path.
	Path string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("tether: invalid membership value at %s.%s: expected literal keys or a nested filter", e.Collection, e.Path)
}

// ReferentialIntegrityViolation reports that a reject-policy foreign key
// still had referents when a deletion was planned. Nothing was mutated.
type ReferentialIntegrityViolation struct {
	// Collection is the referencing collection.
	Collection string

	// Path is the foreign-key path within the referencing collection.
	Path string

	// Key is the offending key still being referenced.
	Key any
}

func (e *ReferentialIntegrityViolation) Error() string {
	return fmt.Sprintf("tether: delete rejected: %s.%s still references key %v", e.Collection, e.Path, e.Key)
}
