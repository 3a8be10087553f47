package services

import (
	"github.com/sessionbridge/sessionbridge-go/internal/domain/events"
	"github.com/sessionbridge/sessionbridge-go/internal/domain/user"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/messaging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/observability/logging"
	"github.com/sessionbridge/sessionbridge-go/internal/infrastructure/persistence/files"
)

// OperatorService manages observer accounts. Deleting an account or changing
// its credential forcibly terminates the account's live connections.
type OperatorService struct {
	operators   *files.OperatorStore
	assignments *AssignmentService
	broadcaster *messaging.ObserverBroadcaster
	logger      *logging.ChanneledLogger
}

// NewOperatorService creates a new operator account service.
func NewOperatorService(operators *files.OperatorStore, assignments *AssignmentService, broadcaster *messaging.ObserverBroadcaster, logger *logging.ChanneledLogger) *OperatorService {
	return &OperatorService{
		operators:   operators,
		assignments: assignments,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// OperatorView is the account shape sent to observers, without the
// credential hash.
type OperatorView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Add creates an operator account.
func (o *OperatorService) Add(username, credential string) (*OperatorView, error) {
	op, err := o.operators.Add(username, credential)
	if err != nil {
		return nil, err
	}
	o.broadcastRoster(events.OperatorAdded)
	return &OperatorView{ID: op.ID, Username: op.Username}, nil
}

// UpdateCredential replaces an operator's credential and logs the operator
// out everywhere, since its old token may be in someone else's hands.
func (o *OperatorService) UpdateCredential(operatorID, credential string) error {
	if _, err := o.operators.UpdateCredential(operatorID, credential); err != nil {
		return err
	}
	o.broadcaster.ForceLogout(operatorID)
	o.broadcastRoster(events.OperatorUpdated)
	return nil
}

// Delete removes an operator account, releases its sessions, and terminates
// its live connections.
func (o *OperatorService) Delete(operatorID string) error {
	op, err := o.operators.Delete(operatorID)
	if err != nil {
		return err
	}
	o.assignments.ClearAssignments(operatorID)
	o.broadcaster.ForceLogout(operatorID)
	o.broadcastRoster(events.OperatorDeleted)
	if o.logger != nil {
		o.logger.Auth().Info("Operator account removed", "operatorId", operatorID, "username", op.Username)
	}
	return nil
}

// List returns every account without credential material.
func (o *OperatorService) List() []OperatorView {
	ops := o.operators.List()
	views := make([]OperatorView, 0, len(ops))
	for _, op := range ops {
		views = append(views, OperatorView{ID: op.ID, Username: op.Username})
	}
	return views
}

// Get returns one account without credential material.
func (o *OperatorService) Get(operatorID string) (*user.Operator, bool) {
	return o.operators.GetByID(operatorID)
}

func (o *OperatorService) broadcastRoster(event string) {
	o.broadcaster.BroadcastGlobal(event, map[string]any{
		"operators": o.List(),
	})
}
