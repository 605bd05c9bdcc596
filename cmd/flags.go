package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SetViperBindings binds flags to viper configuration keys. Commands call
// it from their pre-run hook: viper keeps one flag per key, so two commands
// sharing a flag name must bind only the one that is running.
func SetViperBindings(flags *pflag.FlagSet, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("binding --%s to %s: %w", flagName, configKey, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateFormatWithSuggestion rejects a format outside valid, suggesting
// the closest supported one
func ValidateFormatWithSuggestion(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}

	lower := strings.ToLower(format)
	for _, v := range valid {
		if lower == v || (lower != "" && strings.HasPrefix(v, lower[:1])) {
			return fmt.Errorf("invalid format %q, did you mean %q? (supported: %s)",
				format, v, strings.Join(valid, ", "))
		}
	}

	return fmt.Errorf("invalid format %q (supported: %s)", format, strings.Join(valid, ", "))
}
