package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materio/materio-go/pkg/models"
)

func newTask(id string, priority int) *models.TrainingTask {
	return &models.TrainingTask{
		ID:             id,
		MaterialType:   "ceramic_tile",
		TargetProperty: "rRating",
		Options:        models.DefaultTrainOptions(),
		Priority:       priority,
		CreatedAt:      time.Now(),
	}
}

func TestEnqueueDequeue(t *testing.T) {
	q := NewQueue()

	task := newTask("task-1", 1)
	require.NoError(t, q.Enqueue(task))
	assert.Equal(t, models.TrainingTaskQueued, task.Status)
	assert.Equal(t, 1, q.Length())

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "task-1", got.ID)
	assert.Equal(t, 0, q.Length())

	// Dequeued tasks stay addressable for status polling
	polled, err := q.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", polled.ID)
}

func TestDequeueEmpty(t *testing.T) {
	q := NewQueue()

	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEnqueueRejectsInvalidTask(t *testing.T) {
	q := NewQueue()

	task := newTask("task-1", 1)
	task.MaterialType = ""
	assert.Error(t, q.Enqueue(task))
	assert.Equal(t, 0, q.Length())
}

func TestHigherPriorityDequeuesFirst(t *testing.T) {
	q := NewQueue()

	require.NoError(t, q.Enqueue(newTask("low", 0)))
	require.NoError(t, q.Enqueue(newTask("high", 10)))

	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "high", got.ID)
}

func TestUpdateStatus(t *testing.T) {
	q := NewQueue()
	require.NoError(t, q.Enqueue(newTask("task-1", 1)))

	require.NoError(t, q.UpdateStatus("task-1", models.TrainingTaskRunning, "", ""))
	task, err := q.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TrainingTaskRunning, task.Status)
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)

	require.NoError(t, q.UpdateStatus("task-1", models.TrainingTaskCompleted, "model-42", ""))
	task, err = q.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TrainingTaskCompleted, task.Status)
	assert.Equal(t, "model-42", task.ModelID)
	assert.NotNil(t, task.CompletedAt)
}

func TestUpdateStatusUnknownTask(t *testing.T) {
	q := NewQueue()
	assert.Error(t, q.UpdateStatus("missing", models.TrainingTaskRunning, "", ""))
}

// stubTrainer records calls and returns a canned result per material type
type stubTrainer struct {
	mu      sync.Mutex
	calls   []string
	failFor string
}

func (s *stubTrainer) TrainModel(_ context.Context, materialType, targetProperty string, _ models.TrainOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, materialType)
	if materialType == s.failFor {
		return "", fmt.Errorf("synthetic training failure")
	}
	return "model-" + materialType + "-" + targetProperty, nil
}

func TestWorkerProcessesTask(t *testing.T) {
	q := NewQueue()
	trainer := &stubTrainer{}
	w := NewWorker(q, trainer, 10*time.Millisecond, nil)

	require.NoError(t, q.Enqueue(newTask("task-1", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		task, err := q.Get("task-1")
		return err == nil && task.Status == models.TrainingTaskCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	task, err := q.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, "model-ceramic_tile-rRating", task.ModelID)
	assert.Empty(t, task.ErrorMessage)
}

func TestWorkerRecordsFailure(t *testing.T) {
	q := NewQueue()
	trainer := &stubTrainer{failFor: "ceramic_tile"}
	w := NewWorker(q, trainer, 10*time.Millisecond, nil)

	require.NoError(t, q.Enqueue(newTask("task-1", 1)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		task, err := q.Get("task-1")
		return err == nil && task.Status == models.TrainingTaskFailed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	task, err := q.Get("task-1")
	require.NoError(t, err)
	assert.Contains(t, task.ErrorMessage, "synthetic training failure")
	assert.Empty(t, task.ModelID)
}
