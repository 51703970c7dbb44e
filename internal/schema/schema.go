// Package schema holds the declarative contracts for Hacker News items and
// users.
//
// Contracts are permissive about unknown fields and strict about the types
// of the fields they name. A Contract is an ordered list of independent
// rules; AllOf composes contracts by concatenation, so a refinement never
// replaces the base it extends. Validation stops at the first failing rule.
package schema

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("schema validation failed")

// Contract is a named, ordered set of rules.
type Contract struct {
	Name  string
	Rules []Rule
}

// NewContract builds a contract from rules.
func NewContract(name string, rules ...Rule) Contract {
	return Contract{Name: name, Rules: rules}
}

// AllOf returns a contract that holds only when every part holds, checked
// in order.
func AllOf(name string, parts ...Contract) Contract {
	var rules []Rule
	for _, p := range parts {
		rules = append(rules, p.Rules...)
	}
	return Contract{Name: name, Rules: rules}
}

// ValidationError reports the first rule an instance broke.
type ValidationError struct {
	Contract string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Contract, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", e.Contract, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validate checks instance against c and returns nil or a *ValidationError.
func Validate(instance any, c Contract) error {
	obj, ok := instance.(map[string]any)
	if !ok {
		return &ValidationError{Contract: c.Name, Reason: "expected object, got " + describe(instance)}
	}

	for _, rule := range c.Rules {
		if v := rule(obj); v != nil {
			return &ValidationError{Contract: c.Name, Field: v.Field, Reason: v.Reason}
		}
	}
	return nil
}

// ValidateItem validates in two phases: the common item contract, then the
// refinement selected by the "type" discriminant.
func ValidateItem(instance any) error {
	if err := Validate(instance, CommonItem); err != nil {
		return err
	}

	kind, _ := ParseKind(instance.(map[string]any)["type"])
	return Validate(instance, refinements[kind])
}

// ValidateUser validates a user record.
func ValidateUser(instance any) error {
	return Validate(instance, User)
}
