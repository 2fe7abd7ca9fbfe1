package queue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Task types understood by the worker.
const (
	TaskRecoveryMail   = "recovery_mail"
	TaskConfirmMail    = "confirm_mail"
	TaskStorageSweep   = "storage_sweep"
	TaskSessionCleanup = "session_cleanup"
)

var ErrMalformedTask = errors.New("malformed task")

type Task struct {
	ID      string
	Type    string
	Payload json.RawMessage
}

// MailPayload is carried by recovery_mail and confirm_mail tasks.
type MailPayload struct {
	To   string `json:"to"`
	Name string `json:"name,omitempty"`
	Link string `json:"link"`
}

func (t Task) Decode(out any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedTask)
	}
	if err := json.Unmarshal(t.Payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	return nil
}

func taskFromMessage(msg redis.XMessage) (Task, error) {
	taskType, _ := msg.Values["type"].(string)
	if taskType == "" {
		return Task{}, fmt.Errorf("%w: missing type in %s", ErrMalformedTask, msg.ID)
	}
	task := Task{ID: msg.ID, Type: taskType}
	if raw, ok := msg.Values["payload"].(string); ok && raw != "" {
		task.Payload = json.RawMessage(raw)
	}
	return task, nil
}
