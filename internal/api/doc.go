// Package api содержит HTTP API сервиса.
//
// Структура:
//   - handler.go          — Handler с зависимостями (coordinator, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, metrics, recovery)
//   - response.go         — унифицированные ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - step_handler.go     — /canStart и команды смены статуса
//   - delta_handler.go    — /.mu/delta
//   - pipeline_handler.go — /pipelines и /steps/{code}
//
// Команды принимают код шага в query-параметре step:
// PUT /execute?step=hdfs_init.
package api
