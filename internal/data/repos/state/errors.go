package state

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

// storageErr classifies a database failure. Serialization failures, deadlocks, lock
// timeouts and deadlines are transient; everything else is a storage error.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.ErrTransient, op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "55P03":
			return apperr.Wrap(apperr.ErrTransient, op, err)
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") {
		return apperr.Wrap(apperr.ErrTransient, op, err)
	}
	return apperr.Wrap(apperr.ErrStorage, op, err)
}
