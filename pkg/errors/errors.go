// Package errors defines the typed error taxonomy shared across the store,
// the index manager, the transaction manager and the wire server. Each kind
// is its own small struct with a hand-written Error() string, rather than a
// sentinel value or a single generic error carrying a string code, so that
// the protocol layer can map errors to wire codes with a type switch.
package errors

import "fmt"

// DocumentNotFoundError: read/update/delete against a missing id.
type DocumentNotFoundError struct {
	ID string
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.ID)
}

// DocumentAlreadyExistsError: insert collides with an existing id or a
// unique-index bucket.
type DocumentAlreadyExistsError struct {
	ID string
}

func (e *DocumentAlreadyExistsError) Error() string {
	return fmt.Sprintf("document already exists: %s", e.ID)
}

// VersionMismatchError: a conditional write's expected version did not
// match the stored version.
type VersionMismatchError struct {
	Expected uint64
	Actual   uint64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// LockError: could not acquire a store/index lock within an internal
// deadline.
type LockError struct {
	Resource string
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock error: could not acquire lock on %q", e.Resource)
}

// TransactionError: conflict at commit, abort by the deadlock detector, or
// an operation attempted against a concluded transaction.
type TransactionError struct {
	TransactionID uint64
	Reason        string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %d: %s", e.TransactionID, e.Reason)
}

// InvalidRequestError: malformed wire request (bad envelope, wrong
// protocol version, empty id/method).
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: field %q: %s", e.Field, e.Reason)
}

// InvalidMethodError: the requested method name is not recognized.
type InvalidMethodError struct {
	Method string
}

func (e *InvalidMethodError) Error() string {
	return fmt.Sprintf("invalid method: %q", e.Method)
}

// InvalidParamsError: the method's params did not decode into the expected
// shape.
type InvalidParamsError struct {
	Method string
	Reason string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params for method %q: %s", e.Method, e.Reason)
}

// QueryError: a semantically invalid query, e.g. a range lookup against an
// index kind that does not support ranges.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %s", e.Reason)
}

// SerializationError: a payload could not be parsed or produced.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error: %s", e.Reason)
}

// WalError: a write-ahead-log durability failure.
type WalError struct {
	Reason string
}

func (e *WalError) Error() string {
	return fmt.Sprintf("wal error: %s", e.Reason)
}

// StorageError: a capacity or storage-layer failure outside the WAL.
type StorageError struct {
	Reason string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s", e.Reason)
}

// ValidationError: rejection surfaced uniformly on behalf of an external
// schema-validation collaborator; the core does not implement schema rules
// itself, but reserves this error kind so such a collaborator can report
// through the same taxonomy.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// DuplicateKeyError: a unique index rejected an insert because its bucket
// for the computed key is already non-empty.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violation: key %q already exists in unique index", e.Key)
}

// IndexNotFoundError: an operation named an index that does not exist.
type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %q not found", e.Name)
}

// IndexAlreadyExistsError: create_index used a name already in use.
type IndexAlreadyExistsError struct {
	Name string
}

func (e *IndexAlreadyExistsError) Error() string {
	return fmt.Sprintf("index %q already exists", e.Name)
}

// InvalidKeyTypeError: a value extracted for an index field did not match
// the kind the index was built for.
type InvalidKeyTypeError struct {
	Name     string
	TypeName string
}

func (e *InvalidKeyTypeError) Error() string {
	return fmt.Sprintf("invalid key type for index %q: %s", e.Name, e.TypeName)
}
