package env

import "os"

// Get reads key from the process environment, falling back when the variable
// is unset or blank. Used before the typed config is parsed.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
