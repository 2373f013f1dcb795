package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"gochat-server/apps/chat-service/model"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{model.ErrUnauthorized, http.StatusUnauthorized},
		{model.ErrNotCreator, http.StatusUnauthorized},
		{model.ErrInvalidName, http.StatusBadRequest},
		{model.ErrOwnershipLimit, http.StatusBadRequest},
		{model.ErrAlreadyMember, http.StatusBadRequest},
		{model.ErrNotMember, http.StatusBadRequest},
		{model.ErrDuplicateName, http.StatusBadRequest},
		{fmt.Errorf("group not exists: %w", model.ErrNotFound), http.StatusBadRequest},
		{fmt.Errorf("need name param but not exists: %w", model.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("write conflict: %w", model.ErrStorage), http.StatusInternalServerError},
		{fmt.Errorf("plain dao failure"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), "err %v", tt.err)
	}
}

// 用户查询接口的资源不存在语义是404，区别于群组接口的400
func TestNotFoundAsUserStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound,
		notFoundAsUserStatus(fmt.Errorf("user not exists: %w", model.ErrNotFound)))
	assert.Equal(t, http.StatusUnauthorized, notFoundAsUserStatus(model.ErrUnauthorized))
	assert.Equal(t, http.StatusInternalServerError,
		notFoundAsUserStatus(fmt.Errorf("dao failure")))
}

func TestValidObjectID(t *testing.T) {
	assert.True(t, validObjectID("507f1f77bcf86cd799439011"))
	assert.False(t, validObjectID("not-an-object-id"))
	assert.False(t, validObjectID(""))
}

func TestMarshalWSEvent(t *testing.T) {
	payload, err := marshalWSEvent("group.message", map[string]string{"content": "hi"})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"event":"group.message","data":{"content":"hi"}}`, string(payload))
}
