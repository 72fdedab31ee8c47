package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server 指标 HTTP 端点
//
//	/metrics       Prometheus 默认注册表
//	/debug/memory  MemoryDoctor 样本窗口（JSON）
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewServer 创建指标服务器，尚未监听
func NewServer(addr string, doctor *MemoryDoctor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/memory", func(w http.ResponseWriter, r *http.Request) {
		if doctor == nil {
			http.Error(w, "memory doctor not available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doctor.History())
	})
	return &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start 开始监听并在后台提供服务
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("监听指标地址失败: %w", err)
	}
	s.listener = ln
	s.logger.Info("指标端点已启动", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("指标端点异常退出", zap.Error(err))
		}
	}()
	return nil
}

// Addr 实际监听地址，未启动时为空
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop 关闭服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
