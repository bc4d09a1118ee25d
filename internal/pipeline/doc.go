// Package pipeline описывает определения пайплайнов и превращает их
// в факты графа.
//
// Структура:
//   - definition.go  — Definition: разбор YAML/JSON
//   - validate.go    — проверки: шаги есть, коды уникальны, порядковые номера различны
//   - materialize.go — Facts: тройки pwo:Workflow / pwo:Step со статусом not_started
//   - errors.go      — ошибки валидации
//
// Пример определения:
//
//	name: bde-hdfs
//	steps:
//	  - code: hdfs_init
//	    order: 1
//	  - code: spark_job
//	    order: 2
package pipeline
