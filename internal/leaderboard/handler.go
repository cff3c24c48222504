package leaderboard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// CompletionResponse 是排行榜API的响应模型
type CompletionResponse struct {
	Username        string    `json:"username"`
	TimeToSolve     string    `json:"timeToSolve"`
	AttemptsToSolve uint64    `json:"attemptsToSolve"`
	SolvedAt        time.Time `json:"solvedAt"`
}

// Handler 持有排行榜相关的HTTP处理器。
type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// GetLeaderboard 返回按解出顺序排列的排行榜。
func (h *Handler) GetLeaderboard(c *gin.Context) {
	entries := h.ledger.Snapshot()

	response := make([]CompletionResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, CompletionResponse{
			Username:        entry.Username,
			TimeToSolve:     entry.TimeToSolve.Round(time.Millisecond).String(),
			AttemptsToSolve: entry.AttemptsToSolve,
			SolvedAt:        entry.SolvedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}
