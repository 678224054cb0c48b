package model

import "fmt"

const (
	correspondenceDescriptionTemplateConstant = "(internal %s, public %s)"
	verificationUnverifiedLabelConstant       = "unverified"
	verificationVerifiedLabelConstant         = "verified"
	verificationInvalidLabelConstant          = "invalid"
	verificationUnknownLabelConstant          = "unknown"
)

// RepositorySide identifies which repository of a project a revision belongs to.
type RepositorySide string

// Supported repository sides.
const (
	RepositorySideInternal RepositorySide = RepositorySide("internal")
	RepositorySidePublic   RepositorySide = RepositorySide("public")
)

// ProjectSpace names the naming and layout conventions a codebase follows.
type ProjectSpace string

// Supported project spaces.
const (
	ProjectSpaceInternal ProjectSpace = ProjectSpace("internal")
	ProjectSpacePublic   ProjectSpace = ProjectSpace("public")
)

// VerificationStatus describes whether a stored equivalence has been confirmed against current history.
type VerificationStatus int

// Verification statuses as persisted by the ledger.
const (
	VerificationUnverified VerificationStatus = 0
	VerificationVerified   VerificationStatus = 1
	VerificationInvalid    VerificationStatus = 2
)

// String renders the status label.
func (status VerificationStatus) String() string {
	switch status {
	case VerificationUnverified:
		return verificationUnverifiedLabelConstant
	case VerificationVerified:
		return verificationVerifiedLabelConstant
	case VerificationInvalid:
		return verificationInvalidLabelConstant
	default:
		return verificationUnknownLabelConstant
	}
}

// Correspondence pairs an internal revision with a public revision.
type Correspondence struct {
	InternalRevision string `json:"internal_revision"`
	PublicRevision   string `json:"public_revision"`
}

// String renders both sides of the correspondence.
func (correspondence Correspondence) String() string {
	return fmt.Sprintf(correspondenceDescriptionTemplateConstant, correspondence.InternalRevision, correspondence.PublicRevision)
}

// RevisionFor returns the identifier on the requested side.
func (correspondence Correspondence) RevisionFor(side RepositorySide) string {
	if side == RepositorySidePublic {
		return correspondence.PublicRevision
	}
	return correspondence.InternalRevision
}

// Equivalence is a correspondence recorded in the ledger with its verification status.
type Equivalence struct {
	Correspondence
	VerificationStatus VerificationStatus `json:"verification_status"`
}
