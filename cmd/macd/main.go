package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/netapi/pkg/env"
	"github.com/robotalks/netapi/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	node := env.NewConfig().MustNewEnv()
	for _, addr := range node.Addrs() {
		glog.Infof("listening on %s", addr)
	}
	runner := framework.NewRunner().HandleSignals()
	runner.StopOnExit = true
	if err := runner.Go(node.Runnables()...).Wait(); err != nil {
		log.Fatalln(err)
	}
}
