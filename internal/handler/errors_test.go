package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"advisor-chat/internal/purpose"
	chat_errors "advisor-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", chat_errors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", chat_errors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"not participant", chat_errors.ErrNotParticipant, http.StatusForbidden, "NOT_PARTICIPANT"},
		{"edit window", chat_errors.ErrEditWindowExpired, http.StatusForbidden, "EDIT_WINDOW_EXPIRED"},
		{"invalid input", chat_errors.ErrInvalidInput, http.StatusBadRequest, "INVALID_REQUEST"},
		{"message deleted", chat_errors.ErrMessageDeleted, http.StatusConflict, "MESSAGE_DELETED"},
		{"already exists", chat_errors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
		{"unauthorized", chat_errors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			writeError(c, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)

			var body struct {
				Success bool   `json:"success"`
				Code    string `json:"code"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.wantCode, body.Code)
		})
	}
}

func TestWriteErrorPurposeRejection(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeError(c, purpose.Reject("Student is not assigned to this consultant"))

	assert.Equal(t, http.StatusForbidden, w.Code)

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PURPOSE_REJECTED", body.Code)
	assert.Equal(t, "Student is not assigned to this consultant", body.Error)
}
