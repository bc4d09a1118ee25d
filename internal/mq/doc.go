// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация смен статуса шагов
//   - consumer.go   — потребление уведомлений об изменениях графа
//
// Очередь deltas.inbox получает тела уведомлений delta-notifier
// (тот же формат, что и POST /.mu/delta). Смены статуса публикуются
// в initdaemon.steps с ключом status_changed.
package mq
