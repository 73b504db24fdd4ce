package main

import (
	"context"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pvlbzn/aws-stack-application/config"
	"github.com/pvlbzn/aws-stack-application/credentials"
	"github.com/pvlbzn/aws-stack-application/greeting"
	"github.com/pvlbzn/aws-stack-application/logging"
	"github.com/pvlbzn/aws-stack-application/responder"
	"github.com/pvlbzn/aws-stack-application/telemetry"
)

const serviceName = "server_https"

// newServer returns a nil server and no error when the key pair is absent.
func newServer(ctx context.Context, vi *viper.Viper, log *zap.Logger, keyPath, certPath string, port int) (s *responder.Server, metrics *telemetry.Metrics, err error) {
	creds, err := credentials.Load(keyPath, certPath)
	if err != nil {
		return nil, nil, err
	}
	if creds.Status == credentials.Absent {
		log.Sugar().Infof("failed to start https server: missing %v", creds.Missing)
		return nil, nil, nil
	}
	log.Info("starting https server")

	g, err := greeting.Resolve(vi)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := creds.TLSConfig()
	if err != nil {
		return nil, nil, err
	}

	h := responder.Handler(g.Secure())
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

	s, err = responder.NewHTTPS(responder.Addr(g.Hostname, port), h, cfg)
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
	s, _, err := newServer(context.Background(), config.New(), log,
		credentials.DefaultKeyPath, credentials.DefaultCertPath, responder.HTTPSPort)
	if err == nil && s != nil {
		err = s.Run()
	}
	if err != nil {
		log.Error("Error starting HTTPS server", zap.Error(err))
		os.Exit(1)
	}
}
