package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFeeHandlerDownloadReceiptRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewFeeHandler(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/receipts/download", nil)

	handler.DownloadReceipt(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeeHandlerCreateRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewFeeHandler(nil, nil, nil, nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/fees", strings.NewReader("not json"))

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
