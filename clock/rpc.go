package clock

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"git.fiblab.net/sim/syncer/v3"
)

// Service 时钟RPC服务
type Service struct {
	clockv1connect.UnimplementedClockServiceHandler

	c *Clock
}

// NewService 创建时钟RPC服务
func NewService(c *Clock) *Service {
	return &Service{c: c}
}

// Register 将ClockService注册到sidecar
// 功能：使其他仿真服务可以查询控制循环已运行的时间
func (s *Service) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		clockv1connect.ClockServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return clockv1connect.NewClockServiceHandler(s, opts...)
		},
		syncer.WithNoLock(),
	)
}

// Now 获取当前运行时间
// 返回：按tick数折算的运行时间（秒）
func (s *Service) Now(ctx context.Context, in *connect.Request[clockv1.NowRequest]) (*connect.Response[clockv1.NowResponse], error) {
	return connect.NewResponse(&clockv1.NowResponse{
		T: s.c.T(),
	}), nil
}
