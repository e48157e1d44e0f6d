package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // correlates a sync run or a tree operation
	KeySpanID  = "span_id"  // sub-step within the operation

	// ========================================================================
	// Engine Operations
	// ========================================================================
	KeyOperation = "operation" // CreateFile, Rename, Move, Delete, Share, Sync, ...
	KeyAccount   = "account"   // username of the account
	KeyFileID    = "file_id"   // file id in scope
	KeyParentID  = "parent_id" // parent file id
	KeyPath      = "path"      // decrypted path, logged only at debug level
	KeyFileType  = "file_type" // Document, Folder, Link
	KeyStatus    = "status"    // operation outcome
	KeyStatusMsg = "status_msg"

	// ========================================================================
	// Sync
	// ========================================================================
	KeySyncPhase    = "sync_phase" // push_pre_pull, pull, fetch_documents, merge, validate, push_post_merge, promote, prune
	KeySince        = "since"      // metadata version watermark
	KeyPushed       = "pushed"     // number of diffs pushed
	KeyPulled       = "pulled"     // number of files pulled
	KeyMerged       = "merged"     // number of ids merged
	KeyPruned       = "pruned"     // number of ids pruned
	KeyConflict     = "conflict"   // true when a merge produced a conflict sibling
	KeyAttempt      = "attempt"
	KeyMaxAttempts  = "max_attempts"
	KeySuppressedGC = "gc_suppressed"

	// ========================================================================
	// Document / Blob Store
	// ========================================================================
	KeyDocumentHmac = "document_hmac"
	KeyBlobKey      = "blob_key"
	KeySize         = "size_bytes"
	KeyStoreType    = "store_type" // memory, fs, s3

	// ========================================================================
	// Metadata Store
	// ========================================================================
	KeyLayer     = "layer" // base, local, staged
	KeyTxnID     = "txn_id"
	KeyCacheHit  = "cache_hit"
	KeyCacheName = "cache_name"

	// ========================================================================
	// Sharing
	// ========================================================================
	KeyRecipient = "recipient"
	KeyMode      = "access_mode" // Read, Write, Owner

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorKind  = "error_kind"

	// ========================================================================
	// Network / Server Client
	// ========================================================================
	KeyClientIP   = "client_ip"
	KeyRequestID  = "request_id"
	KeyAPIURL     = "api_url"
	KeyHTTPStatus = "http_status"
)

// TraceID returns a slog.Attr correlating a sync run or tree operation.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for a sub-step within an operation.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Op returns a slog.Attr for the engine operation name.
func Op(name string) slog.Attr { return slog.String(KeyOperation, name) }

// Account returns a slog.Attr for the account username.
func Account(username string) slog.Attr { return slog.String(KeyAccount, username) }

// FileID returns a slog.Attr for a file id.
func FileID(id string) slog.Attr { return slog.String(KeyFileID, id) }

// ParentID returns a slog.Attr for a parent file id.
func ParentID(id string) slog.Attr { return slog.String(KeyParentID, id) }

// Path returns a slog.Attr for a decrypted path. Callers should only log this
// at debug level; it is plaintext.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// FileType returns a slog.Attr for a file type string.
func FileType(t string) slog.Attr { return slog.String(KeyFileType, t) }

// Status returns a slog.Attr for an operation outcome.
func Status(s string) slog.Attr { return slog.String(KeyStatus, s) }

// SyncPhase returns a slog.Attr for the current sync phase.
func SyncPhase(phase string) slog.Attr { return slog.String(KeySyncPhase, phase) }

// Since returns a slog.Attr for the metadata version watermark.
func Since(v uint64) slog.Attr { return slog.Uint64(KeySince, v) }

// Count returns a slog.Attr for a generic named count.
func Count(key string, n int) slog.Attr { return slog.Int(key, n) }

// Conflict returns a slog.Attr flagging a merge conflict.
func Conflict(b bool) slog.Attr { return slog.Bool(KeyConflict, b) }

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// DocumentHmac returns a slog.Attr for a document content hmac (hex).
func DocumentHmac(hex string) slog.Attr { return slog.String(KeyDocumentHmac, hex) }

// BlobKey returns a slog.Attr for a blob store key.
func BlobKey(key string) slog.Attr { return slog.String(KeyBlobKey, key) }

// Size returns a slog.Attr for a byte size.
func Size(n int) slog.Attr { return slog.Int(KeySize, n) }

// StoreType returns a slog.Attr for a blob store backend type.
func StoreType(t string) slog.Attr { return slog.String(KeyStoreType, t) }

// Layer returns a slog.Attr for a metadata store layer (base/local/staged).
func Layer(layer string) slog.Attr { return slog.String(KeyLayer, layer) }

// CacheHit returns a slog.Attr for a cache hit/miss.
func CacheHit(name string, hit bool) slog.Attr {
	return slog.Group("", slog.String(KeyCacheName, name), slog.Bool(KeyCacheHit, hit))
}

// Recipient returns a slog.Attr for a share recipient.
func Recipient(pub string) slog.Attr { return slog.String(KeyRecipient, pub) }

// Mode returns a slog.Attr for an access mode.
func Mode(mode string) slog.Attr { return slog.String(KeyMode, mode) }

// DurationMs returns a slog.Attr for an operation duration.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for a structured error kind.
func ErrorKind(kind string) slog.Attr { return slog.String(KeyErrorKind, kind) }

// APIURL returns a slog.Attr for the configured server URL.
func APIURL(url string) slog.Attr { return slog.String(KeyAPIURL, url) }

// HTTPStatus returns a slog.Attr for an HTTP response status code.
func HTTPStatus(code int) slog.Attr { return slog.Int(KeyHTTPStatus, code) }

// RequestID returns a slog.Attr for a request correlation id.
func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }
