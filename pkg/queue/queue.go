// Package queue provides the in-memory training job queue. Training runs are
// long and CPU-bound, so they execute on a background worker instead of the
// request-serving path.
package queue

import (
	"container/heap"
	"fmt"
	"sync"
	"time"

	"github.com/materio/materio-go/pkg/models"
)

// Queue holds queued training tasks with priority support
type Queue struct {
	mu    sync.RWMutex
	pq    *priorityQueue
	tasks map[string]*models.TrainingTask
}

// NewQueue creates an empty training task queue
func NewQueue() *Queue {
	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	return &Queue{
		pq:    &pq,
		tasks: make(map[string]*models.TrainingTask),
	}
}

// Enqueue adds a training task to the queue
func (q *Queue) Enqueue(task *models.TrainingTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid training task: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// Lower score dequeues first: higher priority wins, then older tasks
	score := float64(time.Now().Unix()) / float64(task.Priority+1)
	heap.Push(q.pq, &pqItem{taskID: task.ID, score: score})

	task.Status = models.TrainingTaskQueued
	q.tasks[task.ID] = task
	return nil
}

// Dequeue removes and returns the next task, or nil when the queue is empty.
// The task stays indexed for status tracking.
func (q *Queue) Dequeue() (*models.TrainingTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil, nil
	}

	item := heap.Pop(q.pq).(*pqItem)
	task, ok := q.tasks[item.taskID]
	if !ok {
		return nil, fmt.Errorf("training task data not found: %s", item.taskID)
	}
	return task, nil
}

// Get retrieves a task by ID
func (q *Queue) Get(taskID string) (*models.TrainingTask, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("training task not found: %s", taskID)
	}
	return task, nil
}

// UpdateStatus transitions a task and records timing and outcome
func (q *Queue) UpdateStatus(taskID string, status models.TrainingTaskStatus, modelID, errorMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return fmt.Errorf("training task not found: %s", taskID)
	}

	task.Status = status
	if modelID != "" {
		task.ModelID = modelID
	}
	if errorMsg != "" {
		task.ErrorMessage = errorMsg
	}

	now := time.Now()
	switch status {
	case models.TrainingTaskRunning:
		task.StartedAt = &now
	case models.TrainingTaskCompleted, models.TrainingTaskFailed:
		task.CompletedAt = &now
	}
	return nil
}

// Length returns the number of tasks waiting to run
func (q *Queue) Length() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pq.Len()
}

// pqItem is one entry in the priority heap
type pqItem struct {
	taskID string
	score  float64
	index  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].score < pq[j].score
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
