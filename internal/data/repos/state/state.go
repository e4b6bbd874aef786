package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/dbctx"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/platform/logger"
)

// UserStateRepo is the durable per-chat state plus the chat's active search session.
// Counter increments are atomic and report the post-increment value together with
// the transfer flag.
type UserStateRepo interface {
	GetByChatID(dbc dbctx.Context, chatID int64) (*dialog.UserState, error)
	GetOrCreate(dbc dbctx.Context, chatID int64) (*dialog.UserState, bool, error)
	SetPersona(dbc dbctx.Context, stateID uuid.UUID, persona dialog.Persona) error
	Increment(dbc dbctx.Context, stateID uuid.UUID, counter dialog.Counter) (dialog.CounterSnapshot, error)
	MarkTransferred(dbc dbctx.Context, stateID uuid.UUID) error
	Reset(dbc dbctx.Context, chatID int64) (*dialog.UserState, error)

	ReplaceSearchSession(dbc dbctx.Context, stateID uuid.UUID, params dialog.SearchParams, offers []dialog.Offer) (*dialog.SearchSession, error)
	GetSearchSession(dbc dbctx.Context, stateID uuid.UUID) (*dialog.SearchSession, error)
	AdvanceSearchCursor(dbc dbctx.Context, sessionID uuid.UUID, from, to dialog.Cursor) (bool, error)
}

type userStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserStateRepo(db *gorm.DB, log *logger.Logger) UserStateRepo {
	return &userStateRepo{
		db:  db,
		log: log.With("repo", "UserStateRepo"),
	}
}

func (r *userStateRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx)
}

func (r *userStateRepo) GetByChatID(dbc dbctx.Context, chatID int64) (*dialog.UserState, error) {
	var out dialog.UserState
	err := r.tx(dbc).Where("chat_id = ?", chatID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get user state", err)
	}
	return &out, nil
}

func (r *userStateRepo) GetOrCreate(dbc dbctx.Context, chatID int64) (*dialog.UserState, bool, error) {
	row := dialog.NewUserState(chatID)
	res := r.tx(dbc).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "chat_id"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, false, storageErr("create user state", res.Error)
	}
	if res.RowsAffected == 1 {
		return row, true, nil
	}
	// Lost the race to a concurrent update for the same chat.
	ex, err := r.GetByChatID(dbc, chatID)
	if err != nil {
		return nil, false, err
	}
	if ex == nil {
		return nil, false, apperr.Wrap(apperr.ErrStorage, "create user state", fmt.Errorf("chat %d vanished after conflict", chatID))
	}
	return ex, false, nil
}

func (r *userStateRepo) SetPersona(dbc dbctx.Context, stateID uuid.UUID, persona dialog.Persona) error {
	if !persona.Valid() {
		return apperr.Wrap(apperr.ErrInvariant, "set persona", fmt.Errorf("unknown persona %q", persona))
	}
	res := r.tx(dbc).
		Model(&dialog.UserState{}).
		Where("id = ?", stateID).
		Updates(map[string]interface{}{"persona": persona, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return storageErr("set persona", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "set persona", fmt.Errorf("state %s", stateID))
	}
	return nil
}

func (r *userStateRepo) Increment(dbc dbctx.Context, stateID uuid.UUID, counter dialog.Counter) (dialog.CounterSnapshot, error) {
	col := counter.Column()
	if col == "" {
		return dialog.CounterSnapshot{}, apperr.Wrap(apperr.ErrInvariant, "increment", fmt.Errorf("unknown counter %q", counter))
	}
	var row dialog.UserState
	res := r.tx(dbc).
		Model(&row).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: col}, {Name: "transferred_to_human"}}}).
		Where("id = ?", stateID).
		UpdateColumns(map[string]interface{}{
			col:          gorm.Expr(col+" + ?", 1),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return dialog.CounterSnapshot{}, storageErr("increment "+col, res.Error)
	}
	if res.RowsAffected == 0 {
		return dialog.CounterSnapshot{}, apperr.Wrap(apperr.ErrNotFound, "increment "+col, fmt.Errorf("state %s", stateID))
	}
	return dialog.CounterSnapshot{
		Counter:     counter,
		Value:       row.Value(counter),
		Transferred: row.TransferredToHuman,
	}, nil
}

func (r *userStateRepo) MarkTransferred(dbc dbctx.Context, stateID uuid.UUID) error {
	res := r.tx(dbc).
		Model(&dialog.UserState{}).
		Where("id = ?", stateID).
		Updates(map[string]interface{}{"transferred_to_human": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return storageErr("mark transferred", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Wrap(apperr.ErrNotFound, "mark transferred", fmt.Errorf("state %s", stateID))
	}
	return nil
}

// Reset replaces the chat's state with a fresh one: intro persona, zero counters, no session.
func (r *userStateRepo) Reset(dbc dbctx.Context, chatID int64) (*dialog.UserState, error) {
	fresh := dialog.NewUserState(chatID)
	err := r.tx(dbc).Transaction(func(tx *gorm.DB) error {
		var old dialog.UserState
		err := tx.Where("chat_id = ?", chatID).First(&old).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		default:
			if err := tx.Where("state_id = ?", old.ID).Delete(&dialog.SearchSession{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id = ?", old.ID).Delete(&dialog.UserState{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(fresh).Error
	})
	if err != nil {
		return nil, storageErr("reset user state", err)
	}
	r.log.Debug("user state reset", "chat_id", chatID, "state_id", fresh.ID)
	return fresh, nil
}

func (r *userStateRepo) ReplaceSearchSession(dbc dbctx.Context, stateID uuid.UUID, params dialog.SearchParams, offers []dialog.Offer) (*dialog.SearchSession, error) {
	session := dialog.NewSearchSession(stateID, params, offers)
	err := r.tx(dbc).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("state_id = ?", stateID).Delete(&dialog.SearchSession{}).Error; err != nil {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, storageErr("replace search session", err)
	}
	return session, nil
}

func (r *userStateRepo) GetSearchSession(dbc dbctx.Context, stateID uuid.UUID) (*dialog.SearchSession, error) {
	var out dialog.SearchSession
	err := r.tx(dbc).Where("state_id = ?", stateID).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get search session", err)
	}
	return &out, nil
}

// AdvanceSearchCursor moves the cursor only if it still equals from. A false result
// means another update already moved it.
func (r *userStateRepo) AdvanceSearchCursor(dbc dbctx.Context, sessionID uuid.UUID, from, to dialog.Cursor) (bool, error) {
	res := r.tx(dbc).
		Model(&dialog.SearchSession{}).
		Where("id = ? AND current_offer_index = ? AND current_estate_index = ?", sessionID, from.Offer, from.Estate).
		UpdateColumns(map[string]interface{}{
			"current_offer_index":  to.Offer,
			"current_estate_index": to.Estate,
		})
	if res.Error != nil {
		return false, storageErr("advance search cursor", res.Error)
	}
	return res.RowsAffected == 1, nil
}
