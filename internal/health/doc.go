// Package health выводит статусы шагов из событий health-check контейнеров.
//
// Структура:
//   - config.go    — Config: включение, режим "только последнее событие", статусы по умолчанию
//   - errors.go    — ErrMalformedEvent и BatchError
//   - processor.go — Processor: фильтрация фактов из потока изменений и обработка пачки
//   - resolve.go   — цепочка атрибуции событие → контейнер → шаг и вычисление статуса
//   - reconcile.go — массовые проходы: перед проверкой шага и по всем контейнерам
//
// Цепочка атрибуции:
//
//	health-событие ─source─▶ событие контейнера ─container─▶ контейнер ─env─▶ INIT_DAEMON_STEP=<код>
//
// Прямой связи между событием и шагом в графе нет. Для одного источника
// авторитетно событие с наибольшим timeNano, независимо от порядка поступления.
// Каждая обработка — разовая сверка: статус записывается только если
// вычисленное значение отличается от текущего.
package health
