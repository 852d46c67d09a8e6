package opts

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConversion        = errors.New("opts: conversion failed")
	ErrInvalidValue      = errors.New("opts: invalid value")
	ErrUnsupportedType   = errors.New("opts: unsupported type")
	ErrConfiguration     = errors.New("opts: invalid provider configuration")
	ErrInvalidKey        = errors.New("opts: invalid key")
	ErrDuplicateKey      = errors.New("opts: duplicate key")
	ErrUnknownKey        = errors.New("opts: unknown key")
	ErrStreamUnsupported = errors.New("opts: provider does not support streams")
	ErrReadOnly          = errors.New("opts: option is read-only")
	ErrInvalidRule       = errors.New("opts: invalid rule")
)

// ConversionError reports a single option whose text could not be converted
// to its declared type, or the reverse.
type ConversionError struct {
	Key  string
	Text string
	Err  error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Key == "" {
		return fmt.Sprintf("opts: convert %q: %v", e.Text, e.Err)
	}
	return fmt.Sprintf("opts: option %q: convert %q: %v", e.Key, e.Text, e.Err)
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

// AggregateConversionError is returned by a bulk load when one or more staged
// values failed to convert. No option was modified.
type AggregateConversionError struct {
	keys   []string
	errors []error
}

func newAggregateConversionError(keys []string, errs []error) *AggregateConversionError {
	return &AggregateConversionError{
		keys:   append([]string(nil), keys...),
		errors: append([]error(nil), errs...),
	}
}

// Keys returns the failing keys in set order.
func (e *AggregateConversionError) Keys() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.keys...)
}

func (e *AggregateConversionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("opts: conversion failed for keys [%s]", strings.Join(e.keys, ", "))
}

func (e *AggregateConversionError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return e.errors
}

func (e *AggregateConversionError) Is(target error) bool {
	return target == ErrConversion
}

// KeyError describes a key rejected by NewSet. Char is the first offending
// character, or zero when the key is empty.
type KeyError struct {
	Key  string
	Char rune
}

func (e *KeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Char == 0 {
		return "opts: invalid key: key must not be empty"
	}
	return fmt.Sprintf("opts: invalid key %q: character %q is not allowed", e.Key, e.Char)
}

func (e *KeyError) Unwrap() error {
	return ErrInvalidKey
}

// StorageError wraps a backing-store failure with the location involved.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("opts: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func invalidValue(key string, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if key == "" {
		return fmt.Errorf("%w: %s", ErrInvalidValue, msg)
	}
	return fmt.Errorf("%w: option %q: %s", ErrInvalidValue, key, msg)
}
