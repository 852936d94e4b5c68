package entity

import (
	"fmt"
	"strings"
)

// ResourceRef is a reference to the record a workflow instance tracks.
// The zero value is invalid; build one with InternshipRef, ResumeRef or ParseResourceRef.
type ResourceRef struct {
	kind ResourceType
	id   string
}

// InternshipRef refers to an internship application
func InternshipRef(internshipID string) ResourceRef {
	return ResourceRef{kind: ResourceTypeInternship, id: internshipID}
}

// ResumeRef refers to the resume of a student; resumes are keyed by student id
func ResumeRef(studentID string) ResourceRef {
	return ResourceRef{kind: ResourceTypeResume, id: studentID}
}

// ParseResourceRef builds a reference from its persisted or wire form
func ParseResourceRef(resourceType, resourceID string) (ResourceRef, error) {
	id := strings.TrimSpace(resourceID)
	if id == "" {
		return ResourceRef{}, fmt.Errorf("resource id is required")
	}
	switch ResourceType(resourceType) {
	case ResourceTypeInternship:
		return InternshipRef(id), nil
	case ResourceTypeResume:
		return ResumeRef(id), nil
	default:
		return ResourceRef{}, fmt.Errorf("unknown resource type %q", resourceType)
	}
}

func (r ResourceRef) Type() ResourceType { return r.kind }

func (r ResourceRef) ID() string { return r.id }

// IsZero reports whether the reference was never set
func (r ResourceRef) IsZero() bool { return r.kind == "" }

func (r ResourceRef) String() string {
	return fmt.Sprintf("%s/%s", r.kind, r.id)
}

// ResourceScope is the ownership information of a resolved resource,
// used to scope instance visibility
type ResourceScope struct {
	SubmitterID  string
	UniversityID string
	CompanyID    string
}
