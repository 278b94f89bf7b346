package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/advisor"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/metrics"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/output"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/server"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/task"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal-oss/utils/input"
)

var (
	// 分布式模式syncer地址，如果设置为空则激活独立部署模式
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	// 本程序监听的gRPC地址
	grpcAddr = flag.String("listen", ":51102", "gRPC listening address")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 模拟传感器单车道采样丢失概率
	dropout = flag.Float64("input.dropout", 0, "probability of dropping a lane from a simulated sample")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "signal")
)

// loadConfig 从文件或base64数据读取配置，两者均未指定时使用默认配置
func loadConfig() config.Config {
	var file []byte
	var err error
	switch {
	case *configPath != "":
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	case *configData != "":
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	default:
		log.Info("no config specified, running with defaults")
		return config.Config{}
	}
	c, err := config.Parse(file)
	if err != nil {
		log.Panicf("config file load err: %v", err)
	}
	return c
}

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	c := loadConfig()
	log.Infof("%+v", c)

	metrics.Register(nil)

	sidecar := syncer.NewSidecar(task.SelfName, *grpcAddr, *syncerAddr)
	feed := input.NewRandomFeed(c.Control.Seed, *dropout)
	t := task.NewContext(c, sidecar, feed, nil, true)
	rc := t.RuntimeConfig()

	adv := advisor.New(rc.A, nil)
	if !adv.Enabled() {
		log.Info("advisor not configured, ai-chat answers with the unavailable message")
	}
	srv := server.New(rc.S, t, adv, nil)
	t.AddObserver(srv.Hub())
	recorder := output.New(rc.O, t.Clock())
	if recorder != nil {
		t.AddObserver(recorder)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Panicf("http api failed: %v", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Infof("signal controller started: tick=%v cycle=%ds emergency=%ds green=%d+%d*density",
		rc.C.TickInterval, rc.C.DefaultCycle, rc.C.EmergencyDuration, rc.C.BaseGreen, rc.C.DensityFactor)
	t.Run(runCtx)

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("http api shutdown err: %v", err)
	}
	if recorder != nil {
		recorder.Close()
	}
	t.Close()
}
