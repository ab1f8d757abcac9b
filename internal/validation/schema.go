package validation

import (
	"strconv"
	"strings"
)

// Field binds a key to its rules. A "*" segment in the key repeats the rules for
// every element of the list stored under the key's prefix, so "notes.*.subject"
// covers notes.0.subject, notes.1.subject and so on.
type Field struct {
	Key   string
	Rules []Rule
}

// Schema is an ordered list of fields. Errors come back in schema order.
type Schema []Field

// Values holds flattened input keyed by dotted path.
type Values map[string]any

// Validate runs every rule and returns nil when all pass.
func (s Schema) Validate(values Values) *Errors {
	errs := NewErrors()
	for _, f := range s {
		for _, key := range expand(f.Key, values) {
			checkField(errs, key, values[key], f.Rules)
		}
	}
	if errs.Empty() {
		return nil
	}
	return errs
}

func checkField(errs *Errors, key string, value any, rules []Rule) {
	attr := Attribute(key)
	if isEmpty(value) {
		for _, r := range rules {
			if _, ok := r.(required); ok {
				errs.Add(key, r.Check(attr, value))
				return
			}
		}
		return
	}
	for _, r := range rules {
		if msg := r.Check(attr, value); msg != "" {
			errs.Add(key, msg)
		}
	}
}

func expand(key string, values Values) []string {
	i := strings.Index(key, "*")
	if i < 0 {
		return []string{key}
	}
	prefix := strings.TrimSuffix(key[:i], ".")
	rest := key[i+1:]
	n, _ := values[prefix].(List)

	var keys []string
	for j := 0; j < int(n); j++ {
		keys = append(keys, expand(prefix+"."+strconv.Itoa(j)+rest, values)...)
	}
	return keys
}
