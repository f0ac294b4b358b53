package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewAdminRouter 管理与监控接口；spectators 为 nil 时不注册 /ws
func NewAdminRouter(s *Session, m *Metrics, spectators *Spectators) *httprouter.Router {
	mux := httprouter.New()
	mux.GET("/healthz", serveHealthCheck(s))
	mux.GET("/state", serveState(s))
	mux.GET("/admin/config", serveConfig(s))
	mux.POST("/admin/config", updateConfig(s))
	if m != nil {
		mux.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	if spectators != nil {
		mux.GET("/ws", spectators.Handle(s))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /healthz  Disconnected 时返回 503
func serveHealthCheck(s *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s.Status() == StatusDisconnected {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("disconnected\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	}
}

// GET /state  会话快照
func serveState(s *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// GET /admin/config  当前移动规则
func serveConfig(s *Session) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, s.Movement())
	}
}

// POST /admin/config  以 JSON 载荷更新部分字段，如 {"mode":"wrap"}
func updateConfig(s *Session) httprouter.Handle {
	type cfg struct {
		Mode   *MovementMode `json:"mode,omitempty"`
		Width  *uint32       `json:"width,omitempty"`
		Height *uint32       `json:"height,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body cfg
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		mv := s.Movement()
		if body.Mode != nil {
			mv.Mode = *body.Mode
		}
		if body.Width != nil {
			mv.Width = *body.Width
		}
		if body.Height != nil {
			mv.Height = *body.Height
		}
		if err := s.SetMovement(mv); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		Log.Infow("movement updated", "mode", mv.Mode, "width", mv.Width, "height", mv.Height)
		writeJSON(w, http.StatusOK, mv)
	}
}

// ServeAdmin 在 addr 上提供管理接口，ctx 取消时优雅关闭
func ServeAdmin(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}
	errs := make(chan error, 1)
	go func() {
		Log.Infow("admin listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
