package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/lukehsiao/find-the-password/internal/platform/database"
	"github.com/lukehsiao/find-the-password/pkg/token"
)

// usernameRe 约束合法的用户名：非空、有界、URL安全。
// 核心引擎假定标识已经过校验，这层校验只存在于HTTP边界。
var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// StatusResponse 是状态页的响应模型
type StatusResponse struct {
	Totals Totals `json:"totals"`
	Users  []View `json:"users"`
}

// Handler 持有用户相关的HTTP处理器。
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateUser 创建一个新用户。
// 实例配置了注册密钥时，请求必须携带与用户名匹配的注册票据。
//
// POST /api/u/:username?ticket=...
func (h *Handler) CreateUser(c *gin.Context) {
	username := c.Param("username")
	if !usernameRe.MatchString(username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "用户名必须是1-64个字母、数字、下划线或连字符"})
		return
	}

	if !token.ValidateTicket(username, c.Query("ticket")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "注册票据缺失或无效"})
		return
	}

	view, err := h.service.CreateUser(username)
	if err != nil {
		if errors.Is(err, ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "用户已存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建用户失败"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetUser 返回一个用户的对外视图。
//
// GET /api/u/:username
func (h *Handler) GetUser(c *gin.Context) {
	view, err := h.service.GetUser(c.Param("username"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteUser 删除一个用户及其完成记录。
//
// DELETE /api/u/:username
func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.service.DeleteUser(c.Param("username")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
		return
	}
	c.Status(http.StatusOK)
}

// GetPasswords 返回该用户的完整候选密码列表。
// 每行一条候选密码，最后一行同样以换行结尾。
//
// GET /api/u/:username/passwords.txt
func (h *Handler) GetPasswords(c *gin.Context) {
	text, err := h.service.PasswordsText(c.Param("username"))
	if err != nil {
		c.String(http.StatusNotFound, "Not Found")
		return
	}
	c.String(http.StatusOK, text)
}

// CheckPassword 校验一次猜测，响应正文是字面量 True 或 False。
//
// GET /api/u/:username/check/:password
func (h *Handler) CheckPassword(c *gin.Context) {
	correct, _, err := h.service.CheckPassword(c.Param("username"), c.Param("password"))
	if err != nil {
		c.String(http.StatusNotFound, "Not Found")
		return
	}
	if correct {
		c.String(http.StatusOK, "True")
	} else {
		c.String(http.StatusOK, "False")
	}
}

// GetStatus 返回所有用户的统计信息和聚合计数。
// Redis健康时从镜像读取，降级时退回内存快照。
//
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	if database.RDB != nil && database.IsRedisHealthy() {
		if resp, err := h.statusFromMirror(); err == nil {
			c.JSON(http.StatusOK, resp)
			return
		}
		// 镜像读取失败时静默退回内存，健康检查器会处理Redis的状态
	}

	c.JSON(http.StatusOK, StatusResponse{
		Totals: h.service.Totals(),
		Users:  h.service.StatusViews(),
	})
}

// statusFromMirror 从Redis镜像组装状态页。
func (h *Handler) statusFromMirror() (StatusResponse, error) {
	statsMap, err := database.RDB.HGetAll(database.Ctx, StatsKey).Result()
	if err != nil {
		return StatusResponse{}, err
	}

	views := make([]View, 0, len(statsMap))
	for _, statsJSON := range statsMap {
		var view View
		if err := json.Unmarshal([]byte(statsJSON), &view); err != nil {
			return StatusResponse{}, err
		}
		views = append(views, view)
	}
	sortStatusViews(views)

	return StatusResponse{
		Totals: h.service.Totals(),
		Users:  views,
	}, nil
}
