package protocol

import (
	stderrors "errors"

	dberrors "github.com/bobboyms/corvusdb/pkg/errors"
)

// FromError maps a store/query/txn error to its wire Error by a type
// switch on the concrete *pkg/errors types, never by matching on an error
// string. Unrecognized errors map to a generic internal-error code.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var notFound *dberrors.DocumentNotFoundError
	if stderrors.As(err, &notFound) {
		return &Error{Code: CodeDocumentNotFound, Message: err.Error(), Data: map[string]any{"id": notFound.ID}}
	}

	var alreadyExists *dberrors.DocumentAlreadyExistsError
	if stderrors.As(err, &alreadyExists) {
		return &Error{Code: CodeDocumentAlreadyExists, Message: err.Error(), Data: map[string]any{"id": alreadyExists.ID}}
	}

	var versionMismatch *dberrors.VersionMismatchError
	if stderrors.As(err, &versionMismatch) {
		return &Error{
			Code: CodeVersionMismatch, Message: err.Error(),
			Data: map[string]any{"expected": versionMismatch.Expected, "actual": versionMismatch.Actual},
		}
	}

	var lockErr *dberrors.LockError
	if stderrors.As(err, &lockErr) {
		return &Error{Code: CodeLockError, Message: err.Error()}
	}

	var txErr *dberrors.TransactionError
	if stderrors.As(err, &txErr) {
		return &Error{Code: CodeTransactionError, Message: err.Error(), Data: map[string]any{"transaction_id": txErr.TransactionID}}
	}

	var invalidRequest *dberrors.InvalidRequestError
	if stderrors.As(err, &invalidRequest) {
		return &Error{Code: CodeInvalidRequest, Message: err.Error()}
	}

	var invalidMethod *dberrors.InvalidMethodError
	if stderrors.As(err, &invalidMethod) {
		return &Error{Code: CodeInvalidMethod, Message: err.Error()}
	}

	var invalidParams *dberrors.InvalidParamsError
	if stderrors.As(err, &invalidParams) {
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	}

	var queryErr *dberrors.QueryError
	if stderrors.As(err, &queryErr) {
		return &Error{Code: CodeQueryError, Message: err.Error()}
	}

	var serializationErr *dberrors.SerializationError
	if stderrors.As(err, &serializationErr) {
		return &Error{Code: CodeSerializationError, Message: err.Error()}
	}

	var walErr *dberrors.WalError
	if stderrors.As(err, &walErr) {
		return &Error{Code: CodeWalError, Message: err.Error()}
	}

	var storageErr *dberrors.StorageError
	if stderrors.As(err, &storageErr) {
		return &Error{Code: CodeStorageError, Message: err.Error()}
	}

	var validationErr *dberrors.ValidationError
	if stderrors.As(err, &validationErr) {
		return &Error{Code: CodeValidationError, Message: err.Error()}
	}

	var indexNotFound *dberrors.IndexNotFoundError
	if stderrors.As(err, &indexNotFound) {
		return &Error{Code: CodeIndexError, Message: err.Error()}
	}

	var indexAlreadyExists *dberrors.IndexAlreadyExistsError
	if stderrors.As(err, &indexAlreadyExists) {
		return &Error{Code: CodeIndexError, Message: err.Error()}
	}

	var duplicateKey *dberrors.DuplicateKeyError
	if stderrors.As(err, &duplicateKey) {
		return &Error{Code: CodeDocumentAlreadyExists, Message: err.Error()}
	}

	var invalidKeyType *dberrors.InvalidKeyTypeError
	if stderrors.As(err, &invalidKeyType) {
		return &Error{Code: CodeQueryError, Message: err.Error()}
	}

	return &Error{Code: CodeInternalError, Message: err.Error()}
}
