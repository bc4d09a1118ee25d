// Package coordinator реализует операции сервиса над шагами пайплайнов.
//
// Coordinator связывает справочник шагов, реестр статусов, проверку
// зависимостей и обработчик health-событий:
//   - CanStart — может ли шаг стартовать
//   - Boot, Execute, Ready, Finish, Fail — команды смены статуса
//   - IngestDelta — пачка изменений графа от delta-notifier
//   - Describe — шаг с порядком и статусом
//   - LoadPipeline — запись нового пайплайна в граф
//   - ReconcileAll — полная сверка статусов по health-событиям
//
// Coordinator не держит состояния между вызовами: атомарность
// обеспечивает хранилище.
package coordinator
