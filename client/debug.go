package client

import (
	"encoding/json"
	"net/http"
)

// NewDebugHandler 只读调试接口：
// GET /metrics   运行指标与连接状态
// GET /entities  实体表快照与棋盘尺寸
// GET /healthz   连接处于 open 时返回 200
func NewDebugHandler(s *Session) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, map[string]any{
			"state":   s.State().String(),
			"metrics": s.Metrics().Snapshot(),
		})
	})
	mux.HandleFunc("/entities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		store := s.Store()
		writeJSON(w, map[string]any{
			"local":    store.LocalID(),
			"board":    store.Board(),
			"entities": store.All(),
		})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if st := s.State(); st != StateOpen {
			http.Error(w, st.String(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
