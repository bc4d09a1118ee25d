// Package cli реализует инструмент командной строки initctl.
//
// # Обзор
//
// initctl — клиент HTTP API init daemon. Работает через HTTP и не
// импортирует внутренние пакеты сервиса. Им пользуются скрипты запуска
// контейнеров: дождаться своей очереди, сообщить о смене статуса.
//
//	initctl can-start hdfs_init --wait --timeout 10m
//	initctl execute hdfs_init
//	initctl done hdfs_init
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент API. Инкапсулирует запросы, разбор ответов
// (DataResponse, ErrorResponse) и ошибки (*APIError).
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные выводятся в stdout, сообщения — в stderr.
//
// ## Commands
//
//   - can-start, boot, execute, ready, done, fail, status — команды шага
//   - pipeline load — запись пайплайна из YAML/JSON
//
// Фабричные функции принимают clientFn и outputFn — замыкания для
// ленивого создания Client и Output после парсинга PersistentFlags.
package cli
