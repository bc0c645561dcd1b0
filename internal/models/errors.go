package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter базовая ошибка некорректного набора параметров
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrCache базовая ошибка поврежденного или несовместимого blob в кэше
	ErrCache = errors.New("cache error")

	// ErrCacheMiss ключ отсутствует в хранилище
	ErrCacheMiss = errors.New("cache miss")

	// ErrAllDegenerate все ячейки сетки дали вырожденный результат
	ErrAllDegenerate = errors.New("all grid scores are degenerate")

	// ErrEmptyCollection коллекция траекторий пуста
	ErrEmptyCollection = errors.New("trajectory collection is empty")
)

// InvalidParameterError параметр не проходит структурную проверку
type InvalidParameterError struct {
	Param  string
	Value  interface{}
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// Is позволяет сравнивать через errors.Is(err, ErrInvalidParameter)
func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// NewInvalidParameterError создает ошибку некорректного параметра
func NewInvalidParameterError(param string, value interface{}, reason string) error {
	return &InvalidParameterError{Param: param, Value: value, Reason: reason}
}

// CacheError blob по ключу не читается или не соответствует схеме
type CacheError struct {
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache entry %q: %v", e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать через errors.Is(err, ErrCache)
func (e *CacheError) Is(target error) bool {
	return target == ErrCache
}
