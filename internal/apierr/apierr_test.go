package apierr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	req, _ := http.NewRequest(http.MethodPost, "http://backend/auth/logout", nil)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestFromResponse_JSONBody(t *testing.T) {
	e := FromResponse(response(http.StatusForbidden, `{"code":"MUST_FINISH_SHIFT_BEFORE_LOGOUT","message":"Close your shift first"}`))

	assert.Equal(t, http.StatusForbidden, e.Status)
	assert.Equal(t, CodeMustFinishShift, e.Code)
	assert.Equal(t, "Close your shift first", e.Message)
	assert.Equal(t, http.MethodPost, e.Method)
	assert.Equal(t, "/auth/logout", e.Path)
	assert.Contains(t, e.Error(), "status 403")
	assert.Contains(t, e.Error(), CodeMustFinishShift)
}

func TestFromResponse_ErrorField(t *testing.T) {
	e := FromResponse(response(http.StatusPreconditionFailed, `{"error":"plate is required"}`))
	assert.Equal(t, "plate is required", e.Message)
}

func TestFromResponse_PlainText(t *testing.T) {
	e := FromResponse(response(http.StatusInternalServerError, "upstream exploded\n"))
	assert.Equal(t, "upstream exploded", e.Message)
	assert.Empty(t, e.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"401", &Error{Status: 401}, KindUnauthorized},
		{"403", &Error{Status: 403, Code: CodeMustFinishShift}, KindBusiness},
		{"412", &Error{Status: 412}, KindValidation},
		{"400", &Error{Status: 400}, KindValidation},
		{"404", &Error{Status: 404}, KindNotFound},
		{"503", &Error{Status: 503}, KindServer},
		{"status zero", &Error{Status: 0}, KindNetwork},
		{"wrapped 401", fmt.Errorf("load clients: %w", &Error{Status: 401}), KindUnauthorized},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork},
		{"url error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("i/o timeout")}, KindNetwork},
		{"cancelled", fmt.Errorf("list clients: %w", context.Canceled), KindCanceled},
		{"cancelled url error", &url.Error{Op: "Get", URL: "http://x", Err: context.Canceled}, KindCanceled},
		{"url error eof", &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, KindNetwork},
		{"dns error", &url.Error{Op: "Get", URL: "http://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, KindNetwork},
		{"bad scheme", &url.Error{Op: "Get", URL: "htp://x", Err: errors.New(`unsupported protocol scheme "htp"`)}, KindUnknown},
		{"message heuristic", errors.New("Network is unreachable"), KindNetwork},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_ClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/clients", nil)
	require.NoError(t, err)
	_, err = server.Client().Do(req)
	require.Error(t, err)
	assert.Equal(t, KindCanceled, Classify(err))
	assert.False(t, IsNetwork(err))
	assert.NotEqual(t, MsgConnection, UserMessage(err))

	_, err = http.Get("htp://bad/x")
	require.Error(t, err)
	assert.Equal(t, KindUnknown, Classify(err))
	assert.False(t, IsNetwork(err))
	assert.Equal(t, MsgGeneric, UserMessage(err))

	closed := httptest.NewServer(http.NotFoundHandler())
	addr := closed.URL
	closed.Close()
	_, err = http.Get(addr)
	require.Error(t, err)
	assert.Equal(t, KindNetwork, Classify(err))
}

func TestHasCodeAndStatus(t *testing.T) {
	err := fmt.Errorf("logout: %w", &Error{Status: 403, Code: CodeMustFinishShift})

	assert.True(t, HasCode(err, CodeMustFinishShift))
	assert.False(t, HasCode(err, "OTHER"))
	assert.False(t, HasCode(errors.New("x"), CodeMustFinishShift))
	assert.Equal(t, 403, Status(err))
	assert.Equal(t, 0, Status(errors.New("x")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, MsgConnection, UserMessage(context.DeadlineExceeded))
	assert.Equal(t, MsgSession, UserMessage(&Error{Status: 401, Message: "jwt expired"}))
	assert.Equal(t, "Plate already inside", UserMessage(&Error{Status: 412, Message: "Plate already inside"}))
	assert.Equal(t, MsgGeneric, UserMessage(&Error{Status: 412}))
	assert.Equal(t, MsgGeneric, UserMessage(errors.New("boom")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unauthorized", KindUnauthorized.String())
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "canceled", KindCanceled.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
