package main

import (
	"context"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pvlbzn/aws-stack-application/config"
	"github.com/pvlbzn/aws-stack-application/greeting"
	"github.com/pvlbzn/aws-stack-application/logging"
	"github.com/pvlbzn/aws-stack-application/responder"
	"github.com/pvlbzn/aws-stack-application/telemetry"
)

const serviceName = "server_http"

func newServer(ctx context.Context, vi *viper.Viper, log *zap.Logger, port int) (s *responder.Server, metrics *telemetry.Metrics, err error) {
	g, err := greeting.Resolve(vi)
	if err != nil {
		return nil, nil, err
	}

	h := responder.Handler(g.Plain())
	if addr := vi.GetString(config.MetricsAddr); addr != "" {
		metrics, err = telemetry.Serve(ctx, addr, telemetry.ApplicationResource{
			ServiceName: serviceName,
			Env:         g.StackName,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		h = telemetry.Middleware(serviceName, h)
	}

	s, err = responder.NewHTTP(responder.Addr(g.Hostname, port), h)
	if err != nil {
		if metrics != nil {
			_ = metrics.Close(ctx)
		}
		return nil, nil, err
	}
	log.Sugar().Infof("server running at %s", s.URL(g.Hostname))
	return s, metrics, nil
}

func main() {
	log := logging.New(os.Stdout)
	s, _, err := newServer(context.Background(), config.New(), log, responder.HTTPPort)
	if err == nil {
		err = s.Run()
	}
	if err != nil {
		log.Error("Error starting HTTP server", zap.Error(err))
		os.Exit(1)
	}
}
