package op_service

import "strings"

// PrefixEnvVar returns the environment variable name for a flag, in the form PREFIX_NAME.
func PrefixEnvVar(prefix, suffix string) []string {
	return []string{strings.ToUpper(prefix) + "_" + suffix}
}
