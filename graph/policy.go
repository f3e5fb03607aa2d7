package graph

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DeletePolicy determines what happens to a referencing document when the
// document it points at is deleted.
type DeletePolicy uint8

const (
	// Bypass leaves referencing documents untouched, dangling key and all.
	Bypass DeletePolicy = iota

	// Reject aborts the deletion while referencing documents exist.
	Reject

	// Cascade deletes referencing documents, transitively.
	Cascade

	// Unset removes the foreign-key field from referencing documents.
	Unset

	// Nullify sets the foreign-key field to null.
	Nullify

	// Pull removes the deleted key from an array-valued foreign-key field.
	Pull
)

var policyNames = map[DeletePolicy]string{
	Bypass:  "bypass",
	Reject:  "reject",
	Cascade: "cascade",
	Unset:   "unset",
	Nullify: "nullify",
	Pull:    "pull",
}

func (p DeletePolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("DeletePolicy(%d)", uint8(p))
}

// ParseDeletePolicy converts a policy name to its DeletePolicy value.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return Bypass, fmt.Errorf("tether: unknown delete policy %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler for DeletePolicy.
func (p *DeletePolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDeletePolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for DeletePolicy.
func (p DeletePolicy) MarshalYAML() (any, error) {
	return p.String(), nil
}
