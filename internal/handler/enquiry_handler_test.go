package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campushq/admissions-api/internal/service"
	appErrors "github.com/campushq/admissions-api/pkg/errors"
)

func TestConversionOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"already admitted", appErrors.Clone(appErrors.ErrAlreadyAdmitted, ""), "already_admitted"},
		{"capacity exceeded", appErrors.Clone(appErrors.ErrCapacityExceeded, "no seats left"), "no_seats"},
		{"validation", appErrors.Clone(appErrors.ErrValidation, "bad payload"), "invalid"},
		{"internal", appErrors.Clone(appErrors.ErrInternal, ""), "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, conversionOutcome(tc.err))
		})
	}
}

func TestEnquiryHandlerConvertRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnquiryHandler(nil, nil, nil, service.NewMetricsService())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/enquiries/e1/convert", strings.NewReader("{not json"))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	handler.Convert(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnquiryHandlerUpdateStatusRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewEnquiryHandler(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/enquiries/e1/status", strings.NewReader(""))
	c.Params = gin.Params{{Key: "id", Value: "e1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
