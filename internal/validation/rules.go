package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// List stands for an array input of the given length. Elements are addressed
// by their own dotted keys ("notes.0.subject").
type List int

// File stands for an uploaded file.
type File struct {
	Name string
	Size int64
}

// Rule checks one constraint. It returns the failure message, or "" on success.
type Rule interface {
	Check(attribute string, value any) string
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(attribute string, value any) string

func (f RuleFunc) Check(attribute string, value any) string { return f(attribute, value) }

type required struct{}

// Required fails on absent values, blank strings and empty lists. Other rules on a
// field are only consulted once its value is present.
var Required Rule = required{}

func (required) Check(attribute string, value any) string {
	if isEmpty(value) {
		return fmt.Sprintf("The %s field is required.", attribute)
	}
	return ""
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case List:
		return v == 0
	case *File:
		return v == nil
	}
	return false
}

// Max bounds string length in characters, file size in kilobytes and list length
// in items.
func Max(n int) Rule {
	return RuleFunc(func(attribute string, value any) string {
		switch v := value.(type) {
		case string:
			if utf8.RuneCountInString(v) > n {
				return fmt.Sprintf("The %s field must not be greater than %d characters.", attribute, n)
			}
		case *File:
			if v.Size > int64(n)*1024 {
				return fmt.Sprintf("The %s field must not be greater than %d kilobytes.", attribute, n)
			}
		case List:
			if int(v) > n {
				return fmt.Sprintf("The %s field must not have more than %d items.", attribute, n)
			}
		}
		return ""
	})
}

// Min is the lower bound counterpart of Max.
func Min(n int) Rule {
	return RuleFunc(func(attribute string, value any) string {
		switch v := value.(type) {
		case string:
			if utf8.RuneCountInString(v) < n {
				return fmt.Sprintf("The %s field must be at least %d characters.", attribute, n)
			}
		case List:
			if int(v) < n {
				return fmt.Sprintf("The %s field must have at least %d items.", attribute, n)
			}
		}
		return ""
	})
}

// In accepts only the listed values.
func In[T ~string](allowed ...T) Rule {
	return RuleFunc(func(attribute string, value any) string {
		s, _ := value.(string)
		for _, a := range allowed {
			if string(a) == s {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", attribute)
	})
}

// DateParser is satisfied by *dates.Parser.
type DateParser interface {
	Parse(s string) (time.Time, error)
	DisplayFormat() string
}

// DateFormat requires the value to parse with p.
func DateFormat(p DateParser) Rule {
	return RuleFunc(func(attribute string, value any) string {
		s, _ := value.(string)
		if _, err := p.Parse(s); err != nil {
			return fmt.Sprintf("The %s field must match the format %s.", attribute, p.DisplayFormat())
		}
		return ""
	})
}

// Email requires a bare address (no display name).
var Email Rule = RuleFunc(func(attribute string, value any) string {
	s, _ := value.(string)
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return fmt.Sprintf("The %s field must be a valid email address.", attribute)
	}
	return ""
})

// Confirmed requires the value to equal its "<field>_confirmation" companion,
// passed in here.
func Confirmed(confirmation string) Rule {
	return RuleFunc(func(attribute string, value any) string {
		s, _ := value.(string)
		if s != confirmation {
			return fmt.Sprintf("The %s field confirmation does not match.", attribute)
		}
		return ""
	})
}

// IsFile requires an upload.
var IsFile Rule = RuleFunc(func(attribute string, value any) string {
	if _, ok := value.(*File); !ok {
		return fmt.Sprintf("The %s field must be a file.", attribute)
	}
	return ""
})

// IsList requires an array input.
var IsList Rule = RuleFunc(func(attribute string, value any) string {
	if _, ok := value.(List); !ok {
		return fmt.Sprintf("The %s field must be an array.", attribute)
	}
	return ""
})
