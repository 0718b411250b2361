package services

import (
	"context"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/store"
)

type SettingsService struct {
	repo     store.SettingsRepository
	defaults models.Settings
	reval    Revalidator
}

func NewSettingsService(s *store.Stores, defaults models.Settings, reval Revalidator) *SettingsService {
	return &SettingsService{repo: s.Settings, defaults: defaults, reval: reval}
}

// Defaults returns the record written on the first read.
func (s *SettingsService) Defaults() models.Settings {
	return s.defaults
}

// Get returns the settings singleton, creating it on first read. Backend
// failures yield the defaults.
func (s *SettingsService) Get(ctx context.Context) models.Settings {
	settings, err := s.load(ctx)
	if err != nil {
		zap.L().Error("read settings failed, serving defaults", zap.Error(err))
		return s.defaults
	}
	return settings
}

// load reads the singleton and inserts the defaults when it is missing.
// Concurrent first reads insert at most one record.
func (s *SettingsService) load(ctx context.Context) (models.Settings, error) {
	current, err := s.repo.Get(ctx)
	if err == nil {
		return *current, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Settings{}, err
	}

	if err := s.repo.CreateIfAbsent(ctx, s.defaults); err != nil {
		return models.Settings{}, err
	}
	current, err = s.repo.Get(ctx)
	if err != nil {
		return models.Settings{}, errors.Wrap(err, "read created settings")
	}
	zap.L().Info("settings initialized", zap.Bool("allow_signups", current.AllowSignups))
	return *current, nil
}

// Update merges the provided fields into the singleton.
func (s *SettingsService) Update(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	verr := &ValidationError{}
	if patch.Empty() {
		verr.Add("settings", "no fields to update")
	}
	if patch.MinOrderQuantity != nil && *patch.MinOrderQuantity < 1 {
		verr.Add("min_order_quantity", "must be at least 1")
	}
	if patch.ContactNumber != nil {
		trimmed := strings.TrimSpace(*patch.ContactNumber)
		patch.ContactNumber = &trimmed
	}
	if err := verr.Err(); err != nil {
		return models.Settings{}, err
	}

	if _, err := s.load(ctx); err != nil {
		return models.Settings{}, err
	}
	if err := s.repo.Merge(ctx, patch); err != nil {
		return models.Settings{}, err
	}
	updated, err := s.load(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	s.reval.Revalidate(PathSettings, PathSignup, PathLogin)
	return updated, nil
}

// DecodePatch builds a patch from loosely typed input such as a JSON object
// or form values. Keys match field names ignoring case and underscores.
func DecodePatch(input map[string]interface{}) (models.SettingsPatch, error) {
	var patch models.SettingsPatch
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &patch,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       checkboxHook,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return patch, errors.Wrap(err, "build settings decoder")
	}
	if err := dec.Decode(input); err != nil {
		verr := &ValidationError{}
		verr.Add("settings", err.Error())
		return patch, verr
	}
	return patch, nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "_", ""))
}

// checkboxHook accepts HTML checkbox values for booleans.
func checkboxHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "on", "yes":
		return true, nil
	case "off", "no", "":
		return false, nil
	}
	return data, nil
}
