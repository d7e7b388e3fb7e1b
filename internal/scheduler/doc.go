// Package scheduler запускает flow по расписаниям.
//
// Расписания читаются из YAML файла (SCHEDULES_FILE) и хранятся в памяти.
// Каждый тик Scheduler находит расписания с наступившим next_due_at
// и запускает flow через Starter (обычно runner.Service).
//
// Структура:
//   - scheduler.go — цикл тиков, Tick и обработка одного расписания
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//   - config.go    — загрузка и валидация файла расписаний
//
// Использование:
//
//	schedules, err := scheduler.LoadFile(os.Getenv("SCHEDULES_FILE"))
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: schedules,
//	    Starter:   runnerService,
//	    Logger:    logger,
//	})
//	sched.Start(ctx)
//	defer sched.Stop()
//
// Runner выполняет не более одного run за раз. Срабатывание, пришедшееся
// на занятый runner, пропускается.
package scheduler
