// Package lberrors defines the engine's error taxonomy.
//
// LbError is the one error type every engine operation returns through;
// callers branch on Kind via errors.As, never on the message text.
package lberrors

import (
	"errors"
	"fmt"
)

// Kind is the broad category of an engine error.
type Kind int

const (
	// KindInput covers malformed caller input: empty/invalid names, paths.
	KindInput Kind = iota

	// KindState covers references to files, accounts or roots that do not
	// exist in the expected place.
	KindState

	// KindPermission covers access-control rejections.
	KindPermission

	// KindValidation covers invariant violations caught while staging a
	// tree mutation. Carries a Cause describing exactly which invariant.
	KindValidation

	// KindNetwork covers transport failures talking to the sync server.
	KindNetwork

	// KindSync covers server-side rejections of a sync push/pull.
	KindSync

	// KindCrypto covers key material and signature failures.
	KindCrypto
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "Input"
	case KindState:
		return "State"
	case KindPermission:
		return "Permission"
	case KindValidation:
		return "Validation"
	case KindNetwork:
		return "Network"
	case KindSync:
		return "Sync"
	case KindCrypto:
		return "Crypto"
	default:
		return "Unknown"
	}
}

// Code identifies the specific error within its Kind. Codes are stable and
// safe to map one-to-one onto UI-facing messages.
type Code int

const (
	CodeUnknown Code = iota

	// Input
	CodePathContainsEmptyFileName
	CodeFileNameEmpty
	CodeFileNameContainsSlash
	CodeFileNameTooLong
	CodePathTaken

	// State
	CodeFileNonexistent
	CodeFileParentNonexistent
	CodeFileNotFolder
	CodeRootNonexistent
	CodeAccountNonexistent
	CodeAccountExists

	// Permission
	CodeInsufficientPermission
	CodeShareNonexistent
	CodeLinkTargetNonexistent
	CodeLinkInSharedFolder

	// Validation (see Cause for the structured detail)
	CodeCycle
	CodePathConflict
	CodeNonFolderWithChildren
	CodeOwnershipViolation
	CodeSignatureInvalid
	CodeDeletedFileUpdated
	CodeSharedLinkToLink

	// Network
	CodeServerUnreachable
	CodeClientUpdateRequired

	// Sync
	CodeUsageIsOverDataCap
	CodeReReadRequired
	CodeExistingRequestPending

	// Crypto
	CodeAccountStringCorrupted
	CodeUsernamePublicKeyMismatch
	CodeInvalidPrivateKey
)

var codeNames = map[Code]string{
	CodeUnknown:                   "Unknown",
	CodePathContainsEmptyFileName: "PathContainsEmptyFileName",
	CodeFileNameEmpty:             "FileNameEmpty",
	CodeFileNameContainsSlash:     "FileNameContainsSlash",
	CodeFileNameTooLong:           "FileNameTooLong",
	CodePathTaken:                 "PathTaken",
	CodeFileNonexistent:           "FileNonexistent",
	CodeFileParentNonexistent:     "FileParentNonexistent",
	CodeFileNotFolder:             "FileNotFolder",
	CodeRootNonexistent:           "RootNonexistent",
	CodeAccountNonexistent:        "AccountNonexistent",
	CodeAccountExists:             "AccountExists",
	CodeInsufficientPermission:    "InsufficientPermission",
	CodeShareNonexistent:          "ShareNonexistent",
	CodeLinkTargetNonexistent:     "LinkTargetNonexistent",
	CodeLinkInSharedFolder:        "LinkInSharedFolder",
	CodeCycle:                     "Cycle",
	CodePathConflict:              "PathConflict",
	CodeNonFolderWithChildren:     "NonFolderWithChildren",
	CodeOwnershipViolation:        "OwnershipViolation",
	CodeSignatureInvalid:          "SignatureInvalid",
	CodeDeletedFileUpdated:        "DeletedFileUpdated",
	CodeSharedLinkToLink:          "SharedLinkToLink",
	CodeServerUnreachable:         "ServerUnreachable",
	CodeClientUpdateRequired:      "ClientUpdateRequired",
	CodeUsageIsOverDataCap:        "UsageIsOverDataCap",
	CodeReReadRequired:            "ReReadRequired",
	CodeExistingRequestPending:    "ExistingRequestPending",
	CodeAccountStringCorrupted:    "AccountStringCorrupted",
	CodeUsernamePublicKeyMismatch: "UsernamePublicKeyMismatch",
	CodeInvalidPrivateKey:         "InvalidPrivateKey",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Cause carries the structured detail for a KindValidation error, mirroring
// the spec's Cycle(id)/PathConflict({ids})/NonFolderWithChildren(id) shapes.
type Cause struct {
	FileIDs []string // the file(s) implicated, e.g. the cycle member or conflicting siblings
}

// LbError is the error type every engine operation surfaces through.
type LbError struct {
	Kind    Kind
	Code    Code
	Message string
	FileID  string // the file implicated, if any
	Cause   *Cause // populated only when Kind == KindValidation
	Wrapped error  // underlying cause for debugging, e.g. an I/O or driver error
}

// Error implements the error interface.
func (e *LbError) Error() string {
	if e.FileID != "" {
		return fmt.Sprintf("%s: %s (file %s)", e.Code, e.Message, e.FileID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/errors.As over the wrapped cause.
func (e *LbError) Unwrap() error {
	return e.Wrapped
}

func newErr(kind Kind, code Code, msg string) *LbError {
	return &LbError{Kind: kind, Code: code, Message: msg}
}

// ============================================================================
// Input
// ============================================================================

func NewPathContainsEmptyFileName() *LbError {
	return newErr(KindInput, CodePathContainsEmptyFileName, "path contains an empty path segment")
}

func NewFileNameEmpty() *LbError {
	return newErr(KindInput, CodeFileNameEmpty, "file name cannot be empty")
}

func NewFileNameContainsSlash() *LbError {
	return newErr(KindInput, CodeFileNameContainsSlash, "file name cannot contain '/'")
}

func NewFileNameTooLong() *LbError {
	return newErr(KindInput, CodeFileNameTooLong, "file name exceeds the maximum length")
}

func NewPathTaken(path string) *LbError {
	e := newErr(KindInput, CodePathTaken, "path already exists: "+path)
	return e
}

// ============================================================================
// State
// ============================================================================

func NewFileNonexistent(id string) *LbError {
	e := newErr(KindState, CodeFileNonexistent, "file does not exist")
	e.FileID = id
	return e
}

func NewFileParentNonexistent(id string) *LbError {
	e := newErr(KindState, CodeFileParentNonexistent, "parent file does not exist")
	e.FileID = id
	return e
}

func NewFileNotFolder(id string) *LbError {
	e := newErr(KindState, CodeFileNotFolder, "file is not a folder")
	e.FileID = id
	return e
}

func NewRootNonexistent() *LbError {
	return newErr(KindState, CodeRootNonexistent, "account has no root")
}

func NewAccountNonexistent() *LbError {
	return newErr(KindState, CodeAccountNonexistent, "no account on this device")
}

func NewAccountExists() *LbError {
	return newErr(KindState, CodeAccountExists, "an account already exists on this device")
}

// ============================================================================
// Permission
// ============================================================================

func NewInsufficientPermission(id string) *LbError {
	e := newErr(KindPermission, CodeInsufficientPermission, "insufficient permission")
	e.FileID = id
	return e
}

func NewShareNonexistent() *LbError {
	return newErr(KindPermission, CodeShareNonexistent, "pending share does not exist")
}

func NewLinkTargetNonexistent(id string) *LbError {
	e := newErr(KindPermission, CodeLinkTargetNonexistent, "link target does not exist")
	e.FileID = id
	return e
}

func NewLinkInSharedFolder() *LbError {
	return newErr(KindPermission, CodeLinkInSharedFolder, "links cannot be created inside a shared folder")
}

// ============================================================================
// Validation
// ============================================================================

func NewCycle(id string) *LbError {
	e := newErr(KindValidation, CodeCycle, "move would create a cycle")
	e.FileID = id
	e.Cause = &Cause{FileIDs: []string{id}}
	return e
}

func NewPathConflict(ids []string) *LbError {
	e := newErr(KindValidation, CodePathConflict, "two files would share the same parent and name")
	e.Cause = &Cause{FileIDs: ids}
	return e
}

func NewNonFolderWithChildren(id string) *LbError {
	e := newErr(KindValidation, CodeNonFolderWithChildren, "a non-folder cannot have children")
	e.FileID = id
	e.Cause = &Cause{FileIDs: []string{id}}
	return e
}

func NewOwnershipViolation(id string) *LbError {
	e := newErr(KindValidation, CodeOwnershipViolation, "file ownership is inconsistent with its parent chain")
	e.FileID = id
	e.Cause = &Cause{FileIDs: []string{id}}
	return e
}

func NewSignatureInvalid(id string) *LbError {
	e := newErr(KindValidation, CodeSignatureInvalid, "file record signature does not verify")
	e.FileID = id
	e.Cause = &Cause{FileIDs: []string{id}}
	return e
}

func NewDeletedFileUpdated(id string) *LbError {
	e := newErr(KindValidation, CodeDeletedFileUpdated, "cannot update a deleted file")
	e.FileID = id
	e.Cause = &Cause{FileIDs: []string{id}}
	return e
}

// NewSharedLinkToLink reports an attempt to create a link whose target is
// itself a link. Links may only point at a real folder or document; chains
// of links are rejected at creation time rather than tolerated at traversal.
func NewSharedLinkToLink(id string) *LbError {
	e := newErr(KindValidation, CodeSharedLinkToLink, "a link cannot target another link")
	e.FileID = id
	e.Cause = &Cause{FileIDs: []string{id}}
	return e
}

// ============================================================================
// Network
// ============================================================================

func NewServerUnreachable(wrapped error) *LbError {
	e := newErr(KindNetwork, CodeServerUnreachable, "could not reach the sync server")
	e.Wrapped = wrapped
	return e
}

func NewClientUpdateRequired() *LbError {
	return newErr(KindNetwork, CodeClientUpdateRequired, "this client version is no longer supported by the server")
}

// ============================================================================
// Sync
// ============================================================================

func NewUsageIsOverDataCap() *LbError {
	return newErr(KindSync, CodeUsageIsOverDataCap, "account data usage exceeds its cap")
}

func NewReReadRequired(id string) *LbError {
	e := newErr(KindSync, CodeReReadRequired, "document changed since last read; re-read before writing")
	e.FileID = id
	return e
}

func NewExistingRequestPending() *LbError {
	return newErr(KindSync, CodeExistingRequestPending, "a sync is already in progress")
}

// ============================================================================
// Crypto
// ============================================================================

func NewAccountStringCorrupted() *LbError {
	return newErr(KindCrypto, CodeAccountStringCorrupted, "account secret string is corrupted")
}

func NewUsernamePublicKeyMismatch() *LbError {
	return newErr(KindCrypto, CodeUsernamePublicKeyMismatch, "username does not match the embedded public key")
}

func NewInvalidPrivateKey(wrapped error) *LbError {
	e := newErr(KindCrypto, CodeInvalidPrivateKey, "private key is invalid")
	e.Wrapped = wrapped
	return e
}

// ============================================================================
// Inspection helpers
// ============================================================================

// Is reports whether err is an *LbError with the given code.
func Is(err error, code Code) bool {
	var lb *LbError
	if errors.As(err, &lb) {
		return lb.Code == code
	}
	return false
}

// KindOf extracts the Kind of err, if it is (or wraps) an *LbError.
func KindOf(err error) (Kind, bool) {
	var lb *LbError
	if errors.As(err, &lb) {
		return lb.Kind, true
	}
	return 0, false
}
