package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskBookingSweep = "bookings.sweep"

const TaskBookingInitialRequest = "bookings.initial_request"

type BookingInitialRequestPayload struct {
	ConfirmationID string `json:"confirmationId"`
}

func NewBookingSweepTask() *asynq.Task {
	return asynq.NewTask(TaskBookingSweep, nil)
}

func NewBookingInitialRequestTask(payload BookingInitialRequestPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingInitialRequest, data), nil
}

func ParseBookingInitialRequestPayload(task *asynq.Task) (BookingInitialRequestPayload, error) {
	var payload BookingInitialRequestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingInitialRequestPayload{}, err
	}
	return payload, nil
}
