package common

import (
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

// ParseConfig decodes a client option map into the typed config T:
// defaults first, then the provided values, then validation. String
// values are coerced into durations and comma-separated slices so
// options can also arrive from environment overrides.
func ParseConfig[T any](opts map[string]any) (res *T, err error) {
	res = new(T)
	if err = defaults.Set(res); err != nil {
		return
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: res,
	})
	if err != nil {
		return
	}
	if err = dec.Decode(opts); err != nil {
		return
	}

	validate := validator.New()
	if err = validate.Struct(res); err != nil {
		return
	}

	return
}
