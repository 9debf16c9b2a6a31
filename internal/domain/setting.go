package domain

import "encoding/json"

// SettingDefaultCategory is the settings key holding the default category.
const SettingDefaultCategory = "default_category"

// Setting is a persisted key/value preference.
type Setting struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// DefaultCategoryValue is the value stored under SettingDefaultCategory.
// A nil CategoryID means no default category.
type DefaultCategoryValue struct {
	CategoryID *int64 `json:"categoryId"`
}
