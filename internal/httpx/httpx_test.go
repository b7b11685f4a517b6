package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lemonmilkceo/final-sub001/internal/apperr"
)

type errorBody struct {
	Error struct {
		Kind    string         `json:"kind"`
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func render(t *testing.T, err error) (int, errorBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), nil, err)
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, body
}

func TestWriteError_DomainError(t *testing.T) {
	sentinel := apperr.New(apperr.KindInsufficientCredit, "insufficient_credit", "not enough credits")
	code, body := render(t, sentinel.WithMeta("balance", 2))
	if code != http.StatusPaymentRequired {
		t.Errorf("status = %d", code)
	}
	if body.Error.Code != "insufficient_credit" || body.Error.Details["balance"] != float64(2) {
		t.Errorf("unexpected body %+v", body.Error)
	}
}

func TestWriteError_ExternalHidesCause(t *testing.T) {
	code, body := render(t, apperr.External("load contract", errors.New("dial tcp 10.0.0.1:5432: refused")))
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", code)
	}
	if body.Error.Kind != string(apperr.KindExternal) || body.Error.Message != "service temporarily unavailable" {
		t.Errorf("cause leaked: %+v", body.Error)
	}
}
