// Package v1alpha1 contains API types for the Wrale Overlay system.
package v1alpha1

// TypeMeta describes an individual object in an API response or event stream
type TypeMeta struct {
	// Kind is a string value representing the type of this object
	Kind string `json:"kind,omitempty"`
	// APIVersion defines the versioned schema of this object
	APIVersion string `json:"apiVersion,omitempty"`
}

// APIVersion is the schema version stamped on objects this package produces
const APIVersion = "v1alpha1"
