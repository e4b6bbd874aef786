package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/domain/dialog"
	"github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/dbctx"
	apperr "github.com/mmdev2003/real-estate-ai-tg-bot/internal/pkg/errors"
)

// memoryRepo keeps state in process. Used by the "memory" storage driver and by tests.
// All operations are serialized by one mutex; values handed out are copies.
type memoryRepo struct {
	mu       sync.Mutex
	byChat   map[int64]*dialog.UserState
	byID     map[uuid.UUID]*dialog.UserState
	sessions map[uuid.UUID]*dialog.SearchSession // keyed by state id
}

func NewMemoryRepo() UserStateRepo {
	return &memoryRepo{
		byChat:   map[int64]*dialog.UserState{},
		byID:     map[uuid.UUID]*dialog.UserState{},
		sessions: map[uuid.UUID]*dialog.SearchSession{},
	}
}

func copyState(s *dialog.UserState) *dialog.UserState {
	c := *s
	return &c
}

func copySession(s *dialog.SearchSession) *dialog.SearchSession {
	c := *s
	c.Offers = append(c.Offers[:0:0], s.Offers...)
	return &c
}

func (m *memoryRepo) GetByChatID(_ dbctx.Context, chatID int64) (*dialog.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byChat[chatID]; ok {
		return copyState(s), nil
	}
	return nil, nil
}

func (m *memoryRepo) GetOrCreate(_ dbctx.Context, chatID int64) (*dialog.UserState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byChat[chatID]; ok {
		return copyState(s), false, nil
	}
	s := dialog.NewUserState(chatID)
	m.byChat[chatID] = s
	m.byID[s.ID] = s
	return copyState(s), true, nil
}

func (m *memoryRepo) lookup(op string, stateID uuid.UUID) (*dialog.UserState, error) {
	s, ok := m.byID[stateID]
	if !ok {
		return nil, apperr.Wrap(apperr.ErrNotFound, op, fmt.Errorf("state %s", stateID))
	}
	return s, nil
}

func (m *memoryRepo) SetPersona(_ dbctx.Context, stateID uuid.UUID, persona dialog.Persona) error {
	if !persona.Valid() {
		return apperr.Wrap(apperr.ErrInvariant, "set persona", fmt.Errorf("unknown persona %q", persona))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup("set persona", stateID)
	if err != nil {
		return err
	}
	s.Persona = persona
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryRepo) Increment(_ dbctx.Context, stateID uuid.UUID, counter dialog.Counter) (dialog.CounterSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup("increment", stateID)
	if err != nil {
		return dialog.CounterSnapshot{}, err
	}
	switch counter {
	case dialog.CounterMessages:
		s.MessagesSeen++
	case dialog.CounterSearch:
		s.SearchInvocations++
	case dialog.CounterCalculator:
		s.CalculatorInvocations++
	default:
		return dialog.CounterSnapshot{}, apperr.Wrap(apperr.ErrInvariant, "increment", fmt.Errorf("unknown counter %q", counter))
	}
	s.UpdatedAt = time.Now().UTC()
	return dialog.CounterSnapshot{Counter: counter, Value: s.Value(counter), Transferred: s.TransferredToHuman}, nil
}

func (m *memoryRepo) MarkTransferred(_ dbctx.Context, stateID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.lookup("mark transferred", stateID)
	if err != nil {
		return err
	}
	s.TransferredToHuman = true
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryRepo) Reset(_ dbctx.Context, chatID int64) (*dialog.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byChat[chatID]; ok {
		delete(m.byID, old.ID)
		delete(m.sessions, old.ID)
	}
	s := dialog.NewUserState(chatID)
	m.byChat[chatID] = s
	m.byID[s.ID] = s
	return copyState(s), nil
}

func (m *memoryRepo) ReplaceSearchSession(_ dbctx.Context, stateID uuid.UUID, params dialog.SearchParams, offers []dialog.Offer) (*dialog.SearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup("replace search session", stateID); err != nil {
		return nil, err
	}
	session := dialog.NewSearchSession(stateID, params, offers)
	m.sessions[stateID] = session
	return copySession(session), nil
}

func (m *memoryRepo) GetSearchSession(_ dbctx.Context, stateID uuid.UUID) (*dialog.SearchSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[stateID]; ok {
		return copySession(s), nil
	}
	return nil, nil
}

func (m *memoryRepo) AdvanceSearchCursor(_ dbctx.Context, sessionID uuid.UUID, from, to dialog.Cursor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID != sessionID {
			continue
		}
		if s.Cursor() != from {
			return false, nil
		}
		s.CurrentOfferIndex = to.Offer
		s.CurrentEstateIndex = to.Estate
		return true, nil
	}
	return false, nil
}
