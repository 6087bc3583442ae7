package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	govalidator "github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *govalidator.Validate
)

// Get returns the shared validator. Field names in errors follow json/yaml tags.
func Get() *govalidator.Validate {
	once.Do(func() {
		v := govalidator.New(govalidator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "yaml"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		instance = v
	})
	return instance
}

// Struct validates v and flattens field errors into one readable error.
func Struct(v any) error {
	err := Get().Struct(v)
	if err == nil {
		return nil
	}
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	sort.Strings(msgs)
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
