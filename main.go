package main

import (
	"context"
	"github.com/csr-ugra/flight-price-parser/cmd"
	"github.com/csr-ugra/flight-price-parser/internal/log"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config, err := util.LoadConfig()
	if err != nil {
		logrus.Fatalln(err)
	}

	logger := log.New(config)

	// log panic error
	defer func() {
		if r := recover(); r != nil {
			logger.Panic(r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cmd.Run(ctx, config, logger, os.Args[1:])
	if err != nil {
		stop()
		logger.Fatalln(err)
	}
}
