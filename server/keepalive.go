package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/wyfcoding/demaxmin/config"
)

// KeepaliveOptions 将配置转换为 gRPC ServerOption，未启用时返回 nil。
func KeepaliveOptions(cfg config.GRPCKeepaliveConfig) []grpc.ServerOption {
	if !cfg.Enabled {
		return nil
	}
	return []grpc.ServerOption{
		grpc.KeepaliveParams(toServerParams(cfg)),
		grpc.KeepaliveEnforcementPolicy(toEnforcement(cfg)),
	}
}

func toServerParams(cfg config.GRPCKeepaliveConfig) keepalive.ServerParameters {
	return keepalive.ServerParameters{
		MaxConnectionIdle:     cfg.MaxConnectionIdle,
		MaxConnectionAge:      cfg.MaxConnectionAge,
		MaxConnectionAgeGrace: cfg.MaxConnectionAgeGrace,
		Time:                  cfg.Time,
		Timeout:               cfg.Timeout,
	}
}

func toEnforcement(cfg config.GRPCKeepaliveConfig) keepalive.EnforcementPolicy {
	return keepalive.EnforcementPolicy{
		MinTime:             cfg.MinTime,
		PermitWithoutStream: cfg.PermitWithoutStream,
	}
}
