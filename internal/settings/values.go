package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Decode converts a merged settings map into Values. Keys that Values does
// not know about (plugin options) are ignored.
func Decode(s Settings) (Values, error) {
	var v Values
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "mapstructure",
		Result:  &v,
	})
	if err != nil {
		return Values{}, err
	}
	if err := dec.Decode(map[string]any(s)); err != nil {
		return Values{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return v, nil
}

// Validate reports every out-of-range value.
func (v Values) Validate() error {
	var errs []string

	if v.AutomaticRescanIntervalInSeconds < 1 {
		errs = append(errs, KeyAutomaticRescanIntervalInSeconds+" must be >= 1")
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		errs = append(errs, KeyThreshold+" must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New("invalid settings: " + strings.Join(errs, "; "))
	}
	return nil
}

// sanitize replaces each invalid field of v with the matching field of def.
func sanitize(v, def Values) Values {
	if v.AutomaticRescanIntervalInSeconds < 1 {
		v.AutomaticRescanIntervalInSeconds = def.AutomaticRescanIntervalInSeconds
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		v.Threshold = def.Threshold
	}
	return v
}
