package rfl

import "sync"

//Task is a unit of work executed by a Pool worker.
type Task interface {
	Run()
}

//Pool is a fixed-size worker pool. Tasks added with AddTask are picked up by
//the workers; Close marks the end of the task stream and WaitAll blocks until
//every added task has finished.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts the given number of workers and returns the pool.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	pool := &Pool{tasks: make(chan Task)}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Run()
			}
		}()
	}
	return pool
}

//AddTask hands a task to the workers. It blocks while all workers are busy.
func (pool *Pool) AddTask(task Task) {
	pool.tasks <- task
}

//Close ends the task stream. No task may be added after Close.
func (pool *Pool) Close() {
	close(pool.tasks)
}

//WaitAll blocks until all workers have drained the task stream.
func (pool *Pool) WaitAll() {
	pool.wg.Wait()
}
