// Package store описывает контракт с графовым хранилищем фактов.
//
// Структура:
//   - store.go  — интерфейс Store и ошибки хранилища
//   - query.go  — типизированная модель запросов (термы, шаблоны, фильтры, ASK/SELECT)
//   - update.go — атомарное обновление "удалить подходящие, вставить новые"
//
// Реализации:
//   - memory   — граф в памяти процесса (тесты, локальная разработка)
//   - sparql   — SPARQL 1.1 endpoint по HTTP
//   - postgres — таблица квадов в PostgreSQL
//
// Запросы строятся только через типизированную модель: пользовательский ввод
// попадает в запрос как литерал и экранируется реализацией, а не склеивается
// в строку.
package store
