package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDBError_NilError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))
}

func TestMapDBError_Codes(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantField string
	}{
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout, ""},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), ErrCodeCanceled, ""},
		{"pgx no rows", pgx.ErrNoRows, ErrCodeNotFound, ""},
		{"sql no rows", sql.ErrNoRows, ErrCodeNotFound, ""},
		{
			"unique from detail",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, Detail: "Key (slug)=(hello) already exists."},
			ErrCodeConflict, "slug",
		},
		{
			"unique from constraint",
			&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "posts_slug_key"},
			ErrCodeConflict, "slug",
		},
		{
			"not null column",
			&pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "title"},
			ErrCodeValidation, "title",
		},
		{
			"check",
			&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "posts_title_check"},
			ErrCodeValidation, "title",
		},
		{
			"bad uuid",
			&pgconn.PgError{Code: pgerrcode.InvalidTextRepresentation},
			ErrCodeValidation, "",
		},
		{
			"other pg error",
			&pgconn.PgError{Code: pgerrcode.DeadlockDetected},
			ErrCodeInternal, "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapDBError(tt.err)
			assert.Equal(t, tt.wantCode, GetCode(got))
			assert.Equal(t, tt.wantField, GetField(got))
			assert.True(t, errors.Is(got, tt.err), "cause must be preserved")
		})
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, MapDBError(plain))
}
