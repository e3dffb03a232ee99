package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{ErrInvalidParam, http.StatusBadRequest},
		{ErrStoryNotFound, http.StatusNotFound},
		{ErrEmailUsed, http.StatusConflict},
		{ErrTurnLimit, http.StatusConflict},
		{ErrServiceUnavailable, http.StatusServiceUnavailable},
		{ErrSpeechFailed, http.StatusBadGateway},
		{New(CodeDatabaseError, "db"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if tc.err.HTTPStatus != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.err.Code, tc.err.HTTPStatus, tc.want)
		}
	}
}

func TestWithDetailDoesNotMutatePredefined(t *testing.T) {
	e := ErrInvalidParam.WithDetail("chunk index out of range")
	if ErrInvalidParam.Detail != "" {
		t.Fatalf("预定义错误被修改: %q", ErrInvalidParam.Detail)
	}
	if e.Detail != "chunk index out of range" {
		t.Fatalf("detail = %q", e.Detail)
	}
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrStoryNotFound)
	if !IsAppError(wrapped) {
		t.Fatal("包装后的 AppError 应被识别")
	}
	if got := AsAppError(wrapped); got.Code != CodeStoryNotFound {
		t.Fatalf("code = %s", got.Code)
	}
	if !stderrors.Is(ErrStoryNotFound.WithDetail("x"), ErrStoryNotFound) {
		t.Fatal("同错误码应满足 errors.Is")
	}
	if got := AsAppError(stderrors.New("plain")); got.Code != CodeUnknown {
		t.Fatalf("code = %s", got.Code)
	}
}
