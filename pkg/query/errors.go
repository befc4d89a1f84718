package query

import (
	"errors"
	"fmt"
)

// Kind names the class of a rejected query. The string value is what users
// see in replies.
type Kind string

const (
	KindLength Kind = "LengthError"
	KindCJK    Kind = "CJK"
	KindPinyin Kind = "pinyin"
	KindFuzzy  Kind = "Fuzzy"
	KindUsage  Kind = "UsageError"
)

// Error is returned for every query the builders refuse.
type Error struct {
	Kind  Kind
	Token string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Token != "":
		return fmt.Sprintf("%s: %q: %v", e.Kind, e.Token, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Token != "":
		return fmt.Sprintf("%s: invalid token %q", e.Kind, e.Token)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of a query error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind, true
	}
	return "", false
}
