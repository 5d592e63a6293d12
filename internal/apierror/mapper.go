package apierror

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes translated by the storage mapper.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgUndefinedTable      = "42P01"
	pgInvalidTextRep      = "22P02"
)

// FromError normalizes any error into an *Error. Existing *Error values
// pass through unchanged; validation and storage failures are classified
// into the taxonomy; everything else becomes an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var valErrs validation.Errors
	if errors.As(err, &valErrs) {
		return FromValidation(valErrs)
	}

	if storageErr := fromStorage(err); storageErr != nil {
		return storageErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindServiceUnavailable, "upstream dependency timed out", err)
	}

	return Internal(err)
}

// FromValidation aggregates validation failures by field path into a
// single 422 error with a per-field message list.
func FromValidation(errs validation.Errors) *Error {
	fields := make(map[string][]string)
	flattenValidation("", errs, fields)
	return Validation(fields)
}

// flattenValidation walks nested validation errors, joining field paths
// with dots.
func flattenValidation(prefix string, errs validation.Errors, out map[string][]string) {
	for field, err := range errs {
		path := field
		if prefix != "" {
			path = prefix + "." + field
		}

		var nested validation.Errors
		if errors.As(err, &nested) {
			flattenValidation(path, nested, out)
			continue
		}

		out[path] = append(out[path], err.Error())
	}
}

// fromStorage classifies storage-layer failures. Returns nil when the
// error does not originate from the storage layer.
func fromStorage(err error) *Error {
	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(KindNotFound, "record not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		field := fieldFromConstraint(pgErr.ConstraintName)
		message := "resource already exists"
		if field != "" {
			message = field + " already exists"
		}
		e := Conflict(message, field)
		e.cause = err
		return e
	case pgForeignKeyViolation:
		return Wrap(KindBadRequest, "invalid reference to related resource", err)
	case pgUndefinedTable:
		return Wrap(KindBadRequest, "invalid relation", err)
	case pgInvalidTextRep:
		return Wrap(KindBadRequest, "invalid value format", err)
	default:
		return Internal(err)
	}
}

// fieldFromConstraint extracts the offending column from a conventional
// postgres constraint name such as "users_email_key" or
// "trips_owner_id_idx". Returns "" when no field can be derived.
func fieldFromConstraint(constraint string) string {
	if constraint == "" {
		return ""
	}

	parts := strings.Split(constraint, "_")
	if len(parts) < 2 {
		return ""
	}

	// Drop the table prefix and a trailing constraint-type suffix.
	switch parts[len(parts)-1] {
	case "key", "idx", "unique", "pkey", "fkey":
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return ""
	}

	return strings.Join(parts[1:], "_")
}
