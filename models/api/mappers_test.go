package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcbradley/netblast/models"
)

func TestDomainAssignmentToAPIWorkResponse(t *testing.T) {
	tests := []struct {
		name       string
		assignment *models.Assignment
		expected   string
	}{
		{
			name: "client assignment",
			assignment: &models.Assignment{
				Kind:    models.AssignmentClient,
				Command: "iperf",
				Args:    []string{"-p", "5001", "-c", "10.0.0.5"},
			},
			expected: `{"SUCCESS":true,"CMD":"iperf","MODE":"client","ARGS":["-p","5001","-c","10.0.0.5"]}`,
		},
		{
			name: "server assignment",
			assignment: &models.Assignment{
				Kind:    models.AssignmentServer,
				Command: "iperf",
				Args:    []string{"-s"},
			},
			expected: `{"SUCCESS":true,"CMD":"iperf","MODE":"server","ARGS":["-s"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := DomainAssignmentToAPIWorkResponse(tt.assignment)
			require.NotNil(t, resp)
			body, err := json.Marshal(resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(body))
		})
	}

	t.Run("none has no wire form", func(t *testing.T) {
		assert.Nil(t, DomainAssignmentToAPIWorkResponse(&models.Assignment{Kind: models.AssignmentNone}))
		assert.Nil(t, DomainAssignmentToAPIWorkResponse(nil))
	})
}

func TestFailureBodies(t *testing.T) {
	body, err := json.Marshal(&WorkResponse{Success: false, Error: ErrMsgWorkerNotFound})
	require.NoError(t, err)
	assert.JSONEq(t, `{"SUCCESS":false,"ERROR_MSG":"Failed to find worker with specified ID."}`, string(body))

	body, err = json.Marshal(DomainRegistrationToAPIRegisterResponse(&models.RegistrationResult{
		WorkerID:   "wk_01G0EZ1XTM37C5X11SQTDNCTM1",
		Credential: "0123456789abcdef0123",
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"WORKER_ID":"wk_01G0EZ1XTM37C5X11SQTDNCTM1","COOKIE":"0123456789abcdef0123"}`, string(body))
}
