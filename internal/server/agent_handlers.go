// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/agent"
)

// maxBatch is the largest batch accepted by /ai-agent/research/batch.
const maxBatch = 10

const (
	msgAgentNotReady = "AI-Agent 未初始化"
	msgAgentRunning  = "AI-Agent 运行正常"
)

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeError(w, http.StatusBadRequest, msgAgentNotReady)
		return
	}
	var body struct {
		DinosaurName string `json:"dinosaur_name"`
	}
	if !decode(w, r, &body) {
		return
	}
	name := strings.TrimSpace(body.DinosaurName)
	if name == "" {
		writeError(w, http.StatusBadRequest, "恐龙名称不能为空")
		return
	}

	res := s.deps.Agent.ResearchOne(r.Context(), name)
	if !res.Success {
		s.logger.Warn("research request failed", zap.String("subject", name), zap.String("error", res.Error))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResearchBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeError(w, http.StatusBadRequest, msgAgentNotReady)
		return
	}
	var body struct {
		DinosaurNames []string `json:"dinosaur_names"`
	}
	if !decode(w, r, &body) {
		return
	}
	if len(body.DinosaurNames) == 0 {
		writeError(w, http.StatusBadRequest, "恐龙名称列表不能为空")
		return
	}
	names := make([]string, 0, len(body.DinosaurNames))
	for _, n := range body.DinosaurNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		writeError(w, http.StatusBadRequest, "没有有效的恐龙名称")
		return
	}
	if len(names) > maxBatch {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("批量处理最多支持%d个恐龙", maxBatch))
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Agent.ResearchMany(r.Context(), names))
}

// statusConfig is the agent config as the status endpoint reports it, with
// durations in milliseconds.
type statusConfig struct {
	agent.Options
	RetryDelay int64 `json:"retry_delay"`
	Timeout    int64 `json:"timeout"`
}

func newStatusConfig(o agent.Options) statusConfig {
	return statusConfig{Options: o, RetryDelay: o.RetryDelay.Milliseconds(), Timeout: o.Timeout.Milliseconds()}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		body := map[string]any{"initialized": false, "message": msgAgentNotReady}
		if s.deps.AgentErr != nil {
			body["error"] = s.deps.AgentErr.Error()
		}
		writeJSON(w, http.StatusOK, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"initialized": true,
		"config":      newStatusConfig(s.deps.Agent.Config()),
		"stats":       s.deps.Agent.Stats(r.Context()),
		"message":     msgAgentRunning,
	})
}

// handleRecommendations works without an agent; the list is static.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		count = 0
	}
	names := agent.Recommend(count)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"recommendations": names,
		"total":           len(names),
		"message":         fmt.Sprintf("推荐 %d 个恐龙进行研究", len(names)),
	})
}
