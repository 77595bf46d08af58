// Package errdefs — типизированные ошибки торгового ядра.
// Вызывающий код ветвится по виду через errors.As, а не по тексту.
package errdefs

import (
	"errors"
	"fmt"
)

// ValidationError — некорректные параметры ордера или отказ риск-проверки.
// Никогда не ретраится.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PositionError — продажа больше, чем держим. Никогда не ретраится.
type PositionError struct {
	Msg string
}

func (e *PositionError) Error() string { return e.Msg }

func Position(format string, args ...any) *PositionError {
	return &PositionError{Msg: fmt.Sprintf(format, args...)}
}

// ExchangeError — отказ на стороне биржи или транспорта при размещении ордера.
// Единственный класс, который executor ретраит.
type ExchangeError struct {
	Msg string
	Err error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExchangeError) Unwrap() error { return e.Err }

func Exchange(err error, format string, args ...any) *ExchangeError {
	return &ExchangeError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// ConnectionError — не смогли открыть транспорт. Решение о повторе за вызывающим.
type ConnectionError struct {
	Msg string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func Connection(err error, format string, args ...any) *ConnectionError {
	return &ConnectionError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// OrderExecutionError — терминальная обёртка после исчерпания ретраев.
type OrderExecutionError struct {
	Attempts int
	Err      error
}

func (e *OrderExecutionError) Error() string {
	return fmt.Sprintf("order failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *OrderExecutionError) Unwrap() error { return e.Err }

// ConfigurationError — битый конфиг на старте. Фатально, в рантайме не чинится.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func Configuration(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// StreamingError — аутентификация/подписка/обработка потока маркет-даты.
// Реконнект-политика за владельцем (runner), не за стрим-клиентом.
type StreamingError struct {
	Msg string
	Err error
}

func (e *StreamingError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *StreamingError) Unwrap() error { return e.Err }

func Streaming(err error, format string, args ...any) *StreamingError {
	return &StreamingError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// NoPriceError — нет цены ни в кэше, ни по REST. Сентинел-ноль не возвращаем.
type NoPriceError struct {
	Pair string
}

func (e *NoPriceError) Error() string {
	return "no price available for " + e.Pair
}

// Retryable — можно ли повторить попытку (только транспорт/биржа).
func Retryable(err error) bool {
	var ex *ExchangeError
	var conn *ConnectionError
	return errors.As(err, &ex) || errors.As(err, &conn)
}
