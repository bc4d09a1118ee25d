package health

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent — факт из потока изменений или health-событие
// не содержит ожидаемых полей.
var ErrMalformedEvent = errors.New("malformed health event")

// BatchError — часть фактов пачки не удалось обработать.
//
// Сообщается один раз на пачку. Обновления, применённые для остальных
// фактов, остаются в силе: каждый факт обрабатывается независимо.
type BatchError struct {
	Total  int   // фактов в пачке
	Failed int   // отброшено как некорректные
	First  error // первая ошибка
}

// Error реализует интерфейс error.
func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d facts in batch are malformed: %v", e.Failed, e.Total, e.First)
}

// Unwrap возвращает первую ошибку (оборачивает ErrMalformedEvent).
func (e *BatchError) Unwrap() error {
	return e.First
}
