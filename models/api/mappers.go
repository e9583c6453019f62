package api

import "github.com/dcbradley/netblast/models"

// DomainRegistrationToAPIRegisterResponse converts a registration result to its wire form
func DomainRegistrationToAPIRegisterResponse(result *models.RegistrationResult) *RegisterResponse {
	if result == nil {
		return nil
	}

	return &RegisterResponse{
		WorkerID: result.WorkerID,
		Cookie:   result.Credential,
	}
}

// DomainAssignmentToAPIWorkResponse converts an assignment to its wire form.
// AssignmentNone has no wire form and yields nil.
func DomainAssignmentToAPIWorkResponse(assignment *models.Assignment) *WorkResponse {
	if assignment == nil || assignment.Kind == models.AssignmentNone {
		return nil
	}

	args := make([]string, len(assignment.Args))
	copy(args, assignment.Args)
	return &WorkResponse{
		Success: true,
		Cmd:     assignment.Command,
		Mode:    string(assignment.Kind),
		Args:    args,
	}
}
