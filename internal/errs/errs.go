// Package errs: доменные ошибки triage-service с явным видом (Kind),
// по которому HTTP-слой выбирает статус ответа.
package errs

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Kind string

const (
	KindNotConfigured  Kind = "not_configured"
	KindRemote         Kind = "remote"
	KindSchemaMismatch Kind = "schema_mismatch"
	KindNotFound       Kind = "not_found"
	KindValidation     Kind = "validation"
	KindRelay          Kind = "relay"
)

// SchemaHint показывается оператору при расхождении схемы БД.
const SchemaHint = "database schema is out of date: run `triage-service migrate up`"

// Коды PostgreSQL: undefined_column, undefined_table.
const (
	pgUndefinedColumn = "42703"
	pgUndefinedTable  = "42P01"
)

var (
	ErrNotConfigured  = &Error{Kind: KindNotConfigured, Msg: "datastore not configured"}
	ErrTicketNotFound = &Error{Kind: KindNotFound, Msg: "ticket not found"}
)

type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает по Kind и Msg, чтобы errors.Is(err, ErrTicketNotFound)
// срабатывал и для ошибок с другим Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Msg == "" || e.Msg == t.Msg)
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf возвращает вид ошибки; ошибки без вида считаются удалёнными (remote).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindRemote
}

// FromDB классифицирует ошибку gorm/драйвера. Расхождение схемы определяется
// по SQLSTATE, а не по тексту сообщения.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Op: op, Msg: ErrTicketNotFound.Msg, Err: err}
	}
	if code := sqlState(err); code == pgUndefinedColumn || code == pgUndefinedTable {
		return &Error{Kind: KindSchemaMismatch, Op: op, Msg: SchemaHint, Err: err}
	}
	return Wrap(KindRemote, op, err)
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
