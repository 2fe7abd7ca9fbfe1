package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrPublicationNotFound = errors.New("publication not found")
	ErrDuplicate           = errors.New("duplicate record")
)

const uniqueViolation = "23505"

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
