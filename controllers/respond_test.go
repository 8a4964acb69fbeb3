package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"marketplace/repository"
)

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad cart", repository.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: emailed twice", repository.ErrDuplicate), http.StatusBadRequest},
		{fmt.Errorf("%w: sold out", repository.ErrNotEnough), http.StatusBadRequest},
		{repository.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("get order: %w", repository.ErrNotFound), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tc.err)
		assert.Equal(t, tc.want, w.Code, "error: %v", tc.err)
		assert.Contains(t, w.Body.String(), "message")
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, errors.New("dsn user:password@tcp failed"))
	assert.NotContains(t, w.Body.String(), "password")
}
