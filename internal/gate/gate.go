// Package gate решает, может ли шаг стартовать.
//
// Шаг может стартовать, если все шаги его пайплайна с меньшим порядковым
// номером находятся в статусе DONE или READY. Решение принимается одним
// ASK-запросом, чтобы проверка существования шагов и их статусов читала
// одно и то же состояние графа.
package gate

import (
	"context"
	"fmt"

	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/store"
)

// Gate — проверка зависимостей шага.
type Gate struct {
	store store.Store
	dir   *directory.Directory
}

// New создаёт Gate.
func New(s store.Store, dir *directory.Directory) *Gate {
	return &Gate{store: s, dir: dir}
}

// CanStart проверяет существование шага и его предшественников.
// Неизвестный код — *directory.NotFoundError.
func (g *Gate) CanStart(ctx context.Context, code string) (bool, error) {
	exists, err := g.dir.Exists(ctx, code)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, &directory.NotFoundError{Code: code}
	}
	return g.Evaluate(ctx, code)
}

// Evaluate возвращает true, если у шага нет предшественников
// в неудовлетворённом статусе. Существование шага не проверяется:
// для неизвестного кода результат — true.
func (g *Gate) Evaluate(ctx context.Context, code string) (bool, error) {
	blocked, err := g.store.Ask(ctx, store.NewAsk(directory.PrecedingUnsatisfied(code)))
	if err != nil {
		return false, fmt.Errorf("ask unsatisfied predecessors of %q: %w", code, err)
	}
	return !blocked, nil
}
