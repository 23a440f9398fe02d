package entity

import "github.com/google/uuid"

// RunStatusMessage is the outbound message published to the training.status
// queue after each epoch and on terminal run states.
type RunStatusMessage struct {
	RunID        uuid.UUID `json:"run_id"`
	Experiment   string    `json:"experiment"`
	ModelType    string    `json:"model_type"`
	Status       RunStatus `json:"status"`
	Epoch        int       `json:"epoch"`
	Epochs       int       `json:"epochs"`
	TrainLoss    float64   `json:"train_loss,omitempty"`
	ValLoss      float64   `json:"val_loss,omitempty"`
	BestValLoss  float64   `json:"best_val_loss,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}
