// Package actions содержит встроенные action для шагов flow.
//
// Каждый action реализует engine.Action и создаётся заново на каждый шаг
// через фабрику в engine.Registry:
//
//	reg := actions.DefaultRegistry(actions.Options{Out: os.Stdout})
//	eng := engine.New(engine.Config{Registry: reg})
//
// # Встроенные action
//
//   - print        — вывод "<prefix> <message>" (print.go)
//   - wait         — пауза на seconds секунд (wait.go)
//   - context.set  — запись значений в ExecContext (set.go)
//   - http.request — HTTP запрос, ответ сохраняется в ExecContext (http.go)
//
// Строковые параметры рендерятся как Go templates по ExecContext:
// {{ .Vars.key }} — значение, сохранённое предыдущим шагом,
// {{ .Env.NAME }} — переменная окружения.
//
// # Ошибки
//
// Невалидные параметры возвращаются как восстановимая engine.ActionError
// с ErrInvalidParams: к ним применяется политика шага. Отмена ctx процесса
// даёт ErrCancelled. Action не повторяют операции сами.
package actions
