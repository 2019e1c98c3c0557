package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidStatus, http.StatusBadRequest},
		{common.ErrOrderAlreadyExists, http.StatusBadRequest},
		{common.ErrOrderClosed, http.StatusBadRequest},
		{common.ErrNoteFrozen, http.StatusForbidden},
		{common.ErrNoteClosed, http.StatusForbidden},
		{common.ErrNotAuthenticated, http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrAdminOnly, http.StatusForbidden},
		{common.ErrNoteNotFound, http.StatusNotFound},
		{common.Storage(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestFlexID(t *testing.T) {
	for in, want := range map[string]int64{`{"nota_id": 7}`: 7, `{"nota_id": "12"}`: 12, `{}`: 0, `{"nota_id": null}`: 0} {
		var req createOrderRequest
		require.NoError(t, json.Unmarshal([]byte(in), &req), in)
		assert.Equal(t, want, int64(req.NoteID), in)
	}

	var req createOrderRequest
	assert.Error(t, json.Unmarshal([]byte(`{"nota_id": "abc"}`), &req))
}
