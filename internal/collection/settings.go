package collection

import (
	"context"
	"encoding/json"

	"github.com/atomshelf/atomshelf-server/internal/domain"
	domainerrors "github.com/atomshelf/atomshelf-server/internal/errors"
	"github.com/atomshelf/atomshelf-server/internal/sse"
	"github.com/atomshelf/atomshelf-server/internal/store"
)

// FetchDefaultCategory reads the default_category setting. A missing row
// means no default.
func (s *Store) FetchDefaultCategory(ctx context.Context) (*int64, error) {
	settings, err := selectAll[domain.Setting](ctx, s.client, store.TableSettings, store.Query{
		Filters: []store.Filter{store.Eq("key", domain.SettingDefaultCategory)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}

	var v domain.DefaultCategoryValue
	if len(settings) > 0 && len(settings[0].Value) > 0 {
		if err := json.Unmarshal(settings[0].Value, &v); err != nil {
			s.logger.Warn("ignoring malformed default category setting", "error", err)
			v = domain.DefaultCategoryValue{}
		}
	}

	s.mu.Lock()
	s.defaultCategory = v.CategoryID
	s.mu.Unlock()
	return copyID(v.CategoryID), nil
}

// SetDefaultCategory persists id as the default category; nil clears it.
func (s *Store) SetDefaultCategory(ctx context.Context, id *int64) error {
	var value any
	if id != nil {
		value = *id
	}
	row := store.Row{
		"key":   domain.SettingDefaultCategory,
		"value": map[string]any{"categoryId": value},
	}
	if err := s.client.Upsert(ctx, store.TableSettings, row, "key"); err != nil {
		return s.remoteErr("set default category", err)
	}

	s.mu.Lock()
	s.defaultCategory = copyID(id)
	s.mu.Unlock()

	s.events.Emit(sse.NewSettingsUpdatedEvent(domain.SettingDefaultCategory, domain.DefaultCategoryValue{CategoryID: copyID(id)}))
	return nil
}

// DefaultCategory returns the local default category id, or nil.
func (s *Store) DefaultCategory() *int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyID(s.defaultCategory)
}

func (s *Store) clearDefaultCategory() {
	s.mu.Lock()
	s.defaultCategory = nil
	s.mu.Unlock()
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// validateID rejects ids that cannot name a row.
func validateID(field string, id int64) error {
	if id <= 0 {
		return domainerrors.Validationf("%s must be a positive id", field)
	}
	return nil
}
