// Package engine содержит движок выполнения flow.
//
// Включает:
//   - engine.go   — последовательное выполнение шагов и политика ошибок
//   - action.go   — контракт Action и типизированные ошибки action
//   - registry.go — реестр фабрик action по идентификатору
//   - context.go  — ExecContext, общий для всех шагов одного run
//   - cancel.go   — CancelToken для кооперативной отмены
//   - validate.go — проверка FlowSpec перед запуском
//   - sink.go     — доставка событий жизненного цикла
//   - template.go — рендеринг Go templates по данным ExecContext
//
// Engine не знает о конкретных action: он только находит фабрику по id,
// создаёт экземпляр и вызывает Execute. Отмена проверяется строго между
// шагами, выполняющийся action никогда не прерывается.
package engine
