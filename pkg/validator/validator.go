// Package validator holds small composable checks that return the first
// failure as an error.
package validator

import (
	"fmt"
	"maps"
	"slices"

	"github.com/neurodesk/datatpl/pkg/value"
)

func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func Map[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

// MapDict applies f to every entry in key order, so the reported failure
// does not depend on map iteration.
func MapDict[T any](items map[string]T, f func(string, T) error, description string) error {
	for _, key := range slices.Sorted(maps.Keys(items)) {
		if err := f(key, items[key]); err != nil {
			return fmt.Errorf("%s: %w", description, err)
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NotNil(field any, description string) error {
	if field == nil {
		return fmt.Errorf("%s must not be nil", description)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func SliceHasElements[T comparable](slice []T, allowed []T, description string) error {
	for _, v := range slice {
		if err := MatchesAllowed(v, allowed, description); err != nil {
			return err
		}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

func Positive(field int, description string) error {
	if field <= 0 {
		return fmt.Errorf("%s must be positive, got %d", description, field)
	}
	return nil
}

// HasNoMarker rejects names that would be read as part of a reference
// value ("a.$.b", "a.*", "derivefrom.[a]").
func HasNoMarker(field string, description string) error {
	if value.ContainsMarker(field) {
		return fmt.Errorf("%s must not contain reference syntax: %q", description, field)
	}
	return nil
}
