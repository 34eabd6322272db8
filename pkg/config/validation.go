package config

import (
	"reflect"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// Validator is implemented by configuration structs with rules beyond
// `required` tags. [Loader.Load] calls Validate after the required checks
// pass. A returned *sserr.Error is passed through; any other error is
// wrapped with [sserr.CodeValidation].
//
// Example:
//
//	func (c *LoggingConfig) Validate() error {
//	    if _, err := ParseLevel(c.Level); err != nil {
//	        return err
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

func validate(cfg any, root reflect.Value) error {
	err := walk(root, "", "", func(f leaf) error {
		if f.required && f.value.IsZero() {
			return sserr.Newf(sserr.CodeValidationRequired,
				"config: required field %q is empty", f.path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	v, ok := cfg.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if _, isSSErr := sserr.AsError(err); isSSErr {
			return err
		}
		return sserr.Wrap(err, sserr.CodeValidation, "config: validation failed")
	}
	return nil
}
