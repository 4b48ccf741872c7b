package config

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a free form json object of model specific settings.
type AttributeMap map[string]interface{}

// Has returns whether the key is set.
func (am AttributeMap) Has(key string) bool {
	_, ok := am[key]
	return ok
}

// TransformAttributeMapToStruct decodes the attributes into the typed struct pointed to by to,
// honoring json tags and "1s" style durations. Unknown keys are an error.
func TransformAttributeMapToStruct(to interface{}, attributes AttributeMap) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           to,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "error creating attribute decoder")
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return errors.Wrap(err, "error decoding attributes")
	}
	return nil
}
