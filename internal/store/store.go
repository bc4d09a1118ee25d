package store

import (
	"context"
	"errors"
)

// Store — хранилище фактов, ограниченное одним именованным графом.
//
// Реализации обязаны выполнять Update атомарно: сторонний читатель
// не должен увидеть состояние "старое удалено, новое ещё не вставлено".
type Store interface {
	// Ask возвращает true, если у запроса есть хотя бы одно решение.
	Ask(ctx context.Context, q *Query) (bool, error)

	// Select возвращает решения запроса в порядке ORDER BY (если задан).
	Select(ctx context.Context, q *Query) ([]Binding, error)

	// Update атомарно удаляет подходящие факты и вставляет новые.
	Update(ctx context.Context, u *Update) error
}

// Общие ошибки хранилища.
var (
	// ErrInvalidQuery — запрос или обновление не прошли валидацию.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrConsistency — данные в хранилище нарушают инвариант
	// (например, два шага с одним кодом или два статуса у шага).
	ErrConsistency = errors.New("store consistency violated")

	// ErrUnavailable — хранилище временно недоступно.
	ErrUnavailable = errors.New("store unavailable")
)

// Error — ошибка обращения к хранилищу (запрос, обновление, таймаут).
type Error struct {
	Op  string // ask, select, update
	Err error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	return "store " + e.Op + ": " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap оборачивает ошибку в *Error. nil остаётся nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}
