package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukehsiao/find-the-password/pkg/token"
)

func newTestRouter(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(s)

	u := router.Group("/api/u")
	{
		u.POST("/:username", h.CreateUser)
		u.GET("/:username", h.GetUser)
		u.DELETE("/:username", h.DeleteUser)
		u.GET("/:username/passwords.txt", h.GetPasswords)
		u.GET("/:username/check/:password", h.CheckPassword)
	}
	router.GET("/api/status", h.GetStatus)
	return router
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerCreateUser(t *testing.T) {
	s := newTestService()
	router := newTestRouter(s)

	w := doRequest(router, http.MethodPost, "/api/u/alice")
	require.Equal(t, http.StatusOK, w.Code)

	var view View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "alice", view.Username)
	assert.Nil(t, view.SolvedAt)

	// 重复创建返回409
	w = doRequest(router, http.MethodPost, "/api/u/alice")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandlerCreateUserInvalidName(t *testing.T) {
	s := newTestService()
	router := newTestRouter(s)

	for _, path := range []string{
		"/api/u/has%20space",
		"/api/u/bad!name",
		"/api/u/" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", // 65个字符
	} {
		w := doRequest(router, http.MethodPost, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path=%s", path)
	}
}

func TestHandlerRegistrationTicket(t *testing.T) {
	token.ConfigureRegistrationKey("test-key")
	defer token.ConfigureRegistrationKey("")

	s := newTestService()
	router := newTestRouter(s)

	// 没有票据或票据无效时拒绝注册
	w := doRequest(router, http.MethodPost, "/api/u/alice")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPost, "/api/u/alice?ticket=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ticket := token.GenerateTicket("alice")
	w = doRequest(router, http.MethodPost, "/api/u/alice?ticket="+ticket)
	assert.Equal(t, http.StatusOK, w.Code)

	// 票据绑定用户名，不能挪给别人用
	w = doRequest(router, http.MethodPost, "/api/u/bob?ticket="+ticket)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerCheckPassword(t *testing.T) {
	s := newTestService()
	router := newTestRouter(s)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/u/alice").Code)
	secret := secretOf(t, s, "alice")

	// 响应正文是字面量True/False
	w := doRequest(router, http.MethodGet, "/api/u/alice/check/wrong-guess")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "False", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/u/alice/check/"+secret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "True", w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/u/nobody/check/whatever")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerGetPasswords(t *testing.T) {
	s := newTestService()
	router := newTestRouter(s)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/u/alice").Code)

	w := doRequest(router, http.MethodGet, "/api/u/alice/passwords.txt")
	require.Equal(t, http.StatusOK, w.Code)
	text, err := s.PasswordsText("alice")
	require.NoError(t, err)
	assert.Equal(t, text, w.Body.String())

	w = doRequest(router, http.MethodGet, "/api/u/nobody/passwords.txt")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerGetAndDeleteUser(t *testing.T) {
	s := newTestService()
	router := newTestRouter(s)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/u/alice").Code)

	w := doRequest(router, http.MethodGet, "/api/u/alice")
	require.Equal(t, http.StatusOK, w.Code)
	// 对外视图永远不包含种子和正确密码
	assert.NotContains(t, w.Body.String(), "seed")
	assert.NotContains(t, w.Body.String(), "secret")

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodDelete, "/api/u/alice").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/api/u/alice").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodDelete, "/api/u/alice").Code)
}

func TestHandlerStatusFallsBackToMemory(t *testing.T) {
	s := newTestService()
	router := newTestRouter(s)

	require.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/u/alice").Code)
	require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/u/alice/check/wrong").Code)

	// 测试里没有Redis，状态页直接走内存快照
	w := doRequest(router, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Totals.Users)
	assert.Equal(t, int64(1), resp.Totals.TotalHits)
	require.Len(t, resp.Users, 1)
	assert.Equal(t, "alice", resp.Users[0].Username)
}
