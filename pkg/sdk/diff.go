package sdk

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Changes is a partial update keyed by wire field name.
type Changes map[string]any

// Keys returns the field names in c.
func (c Changes) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// ChangedFields returns the fields of current whose values differ from
// original. Both arguments may be structs (flattened by their json tag names)
// or maps. Only keys present in current are considered, so fields the editor
// never touched are never sent.
func ChangedFields(original, current any) (Changes, error) {
	before, err := flatten(original)
	if err != nil {
		return nil, fmt.Errorf("flattening original: %w", err)
	}
	after, err := flatten(current)
	if err != nil {
		return nil, fmt.Errorf("flattening current: %w", err)
	}

	changed := Changes{}
	for key, value := range after {
		prev, ok := before[key]
		if !ok || !reflect.DeepEqual(prev, value) {
			changed[key] = value
		}
	}
	return changed, nil
}

func flatten(v any) (map[string]any, error) {
	out := map[string]any{}
	if v == nil {
		return out, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, err
	}
	return out, nil
}
