package conf

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

type envUnmarshaler interface {
	unmarshalEnv(string) error
}

func envEntries() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		i := strings.Index(kv, "=")
		env[kv[:i]] = kv[i+1:]
	}

	return env
}

func loadEnvInternal(env map[string]string, prefix string, rv reflect.Value) error {
	rt := rv.Type()

	if i, ok := rv.Addr().Interface().(envUnmarshaler); ok {
		if ev, ok := env[prefix]; ok {
			err := i.unmarshalEnv(ev)
			if err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
		}
		return nil
	}

	switch rt.Kind() {
	case reflect.String:
		if ev, ok := env[prefix]; ok {
			rv.SetString(ev)
		}
		return nil

	case reflect.Int:
		if ev, ok := env[prefix]; ok {
			iv, err := strconv.ParseInt(ev, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
			rv.SetInt(iv)
		}
		return nil

	case reflect.Bool:
		if ev, ok := env[prefix]; ok {
			switch strings.ToLower(ev) {
			case "yes", "true":
				rv.SetBool(true)

			case "no", "false":
				rv.SetBool(false)

			default:
				return fmt.Errorf("%s: invalid value '%s'", prefix, ev)
			}
		}
		return nil

	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)

			// process yaml tag only
			tag, ok := f.Tag.Lookup("yaml")
			if !ok {
				continue
			}
			tag = strings.Split(tag, ",")[0]

			err := loadEnvInternal(env, prefix+"_"+strings.ToUpper(tag), rv.Field(i))
			if err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		for _, key := range rv.MapKeys() {
			mapKey := strings.ToUpper(key.String())

			elem := reflect.New(rt.Elem().Elem())
			if !rv.MapIndex(key).IsNil() {
				elem.Elem().Set(rv.MapIndex(key).Elem())
			}

			err := loadEnvInternal(env, prefix+"_"+mapKey, elem.Elem())
			if err != nil {
				return err
			}

			rv.SetMapIndex(key, elem)
		}
		return nil
	}

	return nil
}

// loadFromEnvironment overrides configuration values
// with DASHMTX_-prefixed environment variables.
func loadFromEnvironment(prefix string, v interface{}) error {
	return loadEnvInternal(envEntries(), prefix, reflect.ValueOf(v).Elem())
}
